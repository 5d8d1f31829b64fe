package export

import (
	"encoding/json"
	"time"

	"draftling/internal/types"
)

type jsonExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Insertions []jsonInsertion `json:"insertions"`
}

type jsonInsertion struct {
	Host          string    `json:"host"`
	Kind          string    `json:"kind"`
	Delivery      string    `json:"delivery"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedPretty string    `json:"created_pretty"`
}

// JSON formats the insert history as a JSON document.
func JSON(items []types.Insertion) (string, error) {
	out := jsonExport{
		ExportedAt: time.Now(),
		Insertions: make([]jsonInsertion, 0, len(items)),
	}

	for _, ins := range items {
		out.Insertions = append(out.Insertions, jsonInsertion{
			Host:          ins.Host,
			Kind:          ins.Kind.String(),
			Delivery:      ins.Delivery.String(),
			Text:          ins.Text,
			CreatedAt:     ins.CreatedAt,
			CreatedPretty: relativeTime(ins.CreatedAt),
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
