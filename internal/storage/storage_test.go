package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"draftling/internal/types"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDBCreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "draftling.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}
}

func TestOpenDBMigrationsRunOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	// Reopening must not reapply migrations.
	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != len(migrations) {
		t.Errorf("applied = %d, want %d", applied, len(migrations))
	}
}

func TestFeedbackQueueRoundTrip(t *testing.T) {
	db := testDB(t)

	events := []types.FeedbackEvent{
		{
			ID:              "ev-1",
			Kind:            "learn",
			InteractionType: "insert",
			Suggestion:      "Sounds good.",
			SuggestionIndex: 2,
			OriginalEmail:   "can you make it?",
			Feedback:        "accepted",
		},
		{
			ID:         "ev-2",
			Kind:       "remember",
			Suggestion: "I'll be there at noon.",
		},
	}
	for _, ev := range events {
		if err := QueueFeedback(db, ev); err != nil {
			t.Fatalf("QueueFeedback(%s): %v", ev.ID, err)
		}
	}

	pending, err := PendingFeedback(db, 10)
	if err != nil {
		t.Fatalf("PendingFeedback: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d events, want 2", len(pending))
	}

	got := pending[0]
	if got.ID != "ev-1" || got.Kind != "learn" || got.InteractionType != "insert" {
		t.Errorf("first event = %+v", got)
	}
	if got.SuggestionIndex != 2 || got.Suggestion != "Sounds good." {
		t.Errorf("first event payload = %+v", got)
	}
	if pending[1].Kind != "remember" {
		t.Errorf("second event kind = %q", pending[1].Kind)
	}

	if err := DeleteFeedback(db, "ev-1"); err != nil {
		t.Fatalf("DeleteFeedback: %v", err)
	}
	pending, err = PendingFeedback(db, 10)
	if err != nil {
		t.Fatalf("PendingFeedback after delete: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "ev-2" {
		t.Errorf("pending after delete = %+v", pending)
	}
}

func TestPendingFeedbackRespectsLimit(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := QueueFeedback(db, types.FeedbackEvent{ID: id, Kind: "learn"}); err != nil {
			t.Fatalf("QueueFeedback(%s): %v", id, err)
		}
	}

	pending, err := PendingFeedback(db, 2)
	if err != nil {
		t.Fatalf("PendingFeedback: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d events, want 2", len(pending))
	}
}

func TestDeleteFeedbackRemovesBlob(t *testing.T) {
	db := testDB(t)

	blob, err := SaveContext(t.TempDir(), "<html><body>thread</body></html>")
	if err != nil {
		t.Fatalf("SaveContext: %v", err)
	}

	ev := types.FeedbackEvent{ID: "ev-blob", Kind: "learn", ContextBlob: blob}
	if err := QueueFeedback(db, ev); err != nil {
		t.Fatalf("QueueFeedback: %v", err)
	}
	if err := DeleteFeedback(db, "ev-blob"); err != nil {
		t.Fatalf("DeleteFeedback: %v", err)
	}

	if _, err := os.Stat(blob); !os.IsNotExist(err) {
		t.Errorf("blob still exists after delete: %v", err)
	}
}

func TestInsertHistory(t *testing.T) {
	db := testDB(t)

	inserts := []types.Insertion{
		{Host: "mail.google.com", Kind: types.RichText, Delivery: types.DeliveryInserted, Text: "First reply."},
		{Host: "mail.google.com", Kind: types.RichText, Delivery: types.DeliveryClipboard, Text: "Second reply."},
		{Host: "outlook.live.com", Kind: types.PlainText, Delivery: types.DeliveryAlert, Text: "Third reply."},
	}
	for _, ins := range inserts {
		if err := RecordInsertion(db, ins); err != nil {
			t.Fatalf("RecordInsertion: %v", err)
		}
	}

	items, err := History(db, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("history = %d items, want 3", len(items))
	}

	// Newest first.
	if items[0].Text != "Third reply." {
		t.Errorf("items[0].Text = %q, want the newest insertion", items[0].Text)
	}
	if items[0].Host != "outlook.live.com" || items[0].Kind != types.PlainText {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].Delivery != types.DeliveryAlert {
		t.Errorf("items[0].Delivery = %v", items[0].Delivery)
	}
	if items[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	limited, err := History(db, 1)
	if err != nil {
		t.Fatalf("History(1): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("History(1) = %d items", len(limited))
	}
}

func TestContextBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	html := "<html><body>a long compose context body</body></html>"

	path, err := SaveContext(dir, html)
	if err != nil {
		t.Fatalf("SaveContext: %v", err)
	}
	if filepath.Ext(path) != ".lz4" {
		t.Errorf("blob path = %q, want .lz4 extension", path)
	}

	got, err := LoadContext(path)
	if err != nil {
		t.Fatalf("LoadContext: %v", err)
	}
	if got != html {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestDefaultDirHonorsEnv(t *testing.T) {
	t.Setenv("DRAFTLING_DATA_DIR", "/tmp/draftling-test")

	dir, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir: %v", err)
	}
	if dir != "/tmp/draftling-test" {
		t.Errorf("DefaultDir = %q", dir)
	}

	dbPath, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if dbPath != filepath.Join("/tmp/draftling-test", "draftling.db") {
		t.Errorf("DefaultDBPath = %q", dbPath)
	}
}
