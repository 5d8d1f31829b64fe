package page

// The page runtime below is evaluated once per document. It owns everything
// that must exist exactly once regardless of how many surfaces get
// instrumented: the binding poster, panel styles, the document-level
// dismiss listener, throttled activity listeners, the mutation observer
// and the one-shot wake listeners.
//
// All agent-bound messages go through the __draftling binding as a single
// JSON string; the Go side fans them out from Runtime.bindingCalled.
const runtimeScript = `
(() => {
  if (window.__draftlingRuntime) return;

  const post = (msg) => {
    try { window.__draftling(JSON.stringify(msg)); } catch (e) {}
  };

  const rt = {};
  window.__draftlingRuntime = rt;
  window.__draftlingSeq = window.__draftlingSeq || 0;

  const style = document.createElement('style');
  style.textContent = [
    '.draftling-wrap{position:relative;display:inline-block;vertical-align:top;}',
    '.draftling-trigger{all:initial;cursor:pointer;font:12px sans-serif;padding:2px 7px;',
    'border:1px solid #c6c6c6;border-radius:10px;background:#f5f7fb;color:#333;margin:2px;}',
    '.draftling-trigger:hover{background:#e8edf7;}',
    '.draftling-panel{display:none;position:absolute;z-index:2147483646;top:100%;left:0;',
    'min-width:260px;max-width:420px;background:#fff;border:1px solid #c6c6c6;',
    'border-radius:6px;box-shadow:0 4px 14px rgba(0,0,0,.18);font:13px sans-serif;color:#222;}',
    '.draftling-panel.open{display:block;}',
    '.draftling-item{display:flex;gap:6px;align-items:flex-start;padding:7px 9px;',
    'border-bottom:1px solid #eee;}',
    '.draftling-item:last-child{border-bottom:none;}',
    '.draftling-item .body{flex:1;cursor:pointer;white-space:pre-wrap;}',
    '.draftling-item .body:hover{background:#f2f6ff;}',
    '.draftling-item .copy{all:initial;cursor:pointer;font:11px sans-serif;color:#567;',
    'border:1px solid #ccd;border-radius:4px;padding:1px 5px;}',
    '.draftling-loading,.draftling-offline{padding:8px 10px;color:#777;font-style:italic;}',
    '.draftling-toast{position:absolute;z-index:2147483647;top:-1.8em;left:0;font:11px sans-serif;',
    'background:#333;color:#fff;border-radius:4px;padding:2px 8px;white-space:nowrap;}'
  ].join('');
  (document.head || document.documentElement).appendChild(style);

  // Dismiss: one listener per document, not per surface, so listener count
  // stays constant as surfaces accumulate.
  document.addEventListener('click', (e) => {
    document.querySelectorAll('.draftling-panel.open').forEach((p) => {
      const wrap = p.closest('.draftling-wrap');
      if (wrap && !wrap.contains(e.target)) p.classList.remove('open');
    });
  }, true);

  // Activity: throttled so pointer movement does not flood the binding.
  let lastActivity = 0;
  const activity = () => {
    const now = Date.now();
    if (now - lastActivity < 1000) return;
    lastActivity = now;
    post({ kind: 'activity' });
  };
  for (const t of ['click', 'keydown', 'pointermove', 'scroll', 'focusin']) {
    document.addEventListener(t, activity, { capture: true, passive: true });
  }

  rt.query = (selector) => {
    const out = [];
    for (const el of document.querySelectorAll(selector)) {
      if (el.dataset.draftling) continue;
      if (!el.offsetWidth || !el.offsetHeight) continue;
      if (!el.dataset.draftlingId) {
        el.dataset.draftlingId = 'dl-' + (++window.__draftlingSeq);
      }
      out.push(el.dataset.draftlingId);
    }
    return out;
  };

  const lookup = (id) => {
    const el = document.querySelector('[data-draftling-id="' + id + '"]');
    if (!el) throw new Error('draftling: no element ' + id);
    return el;
  };

  rt.attach = (id) => {
    const el = lookup(id);
    const wrap = document.createElement('span');
    wrap.className = 'draftling-wrap';
    wrap.dataset.draftlingFor = id;

    const trigger = document.createElement('button');
    trigger.type = 'button';
    trigger.className = 'draftling-trigger';
    trigger.textContent = '✨ Reply';

    const panel = document.createElement('div');
    panel.className = 'draftling-panel';

    trigger.addEventListener('click', (e) => {
      e.preventDefault();
      e.stopPropagation();
      const opening = !panel.classList.contains('open');
      if (opening) {
        panel.innerHTML = '<div class="draftling-loading">Thinking…</div>';
        panel.classList.add('open');
      } else {
        panel.classList.remove('open');
      }
      post({ kind: 'toggle', surface: id, open: opening });
    });

    wrap.appendChild(trigger);
    wrap.appendChild(panel);
    el.insertAdjacentElement('afterend', wrap);
    el.dataset.draftling = '1';
  };

  rt.panelFor = (id) => {
    const wrap = document.querySelector('[data-draftling-for="' + id + '"]');
    if (!wrap) throw new Error('draftling: no panel for ' + id);
    return wrap.querySelector('.draftling-panel');
  };

  rt.showLoading = (id) => {
    rt.panelFor(id).innerHTML = '<div class="draftling-loading">Thinking…</div>';
  };

  rt.render = (id, items, fromModel) => {
    const panel = rt.panelFor(id);
    panel.textContent = '';
    if (!fromModel) {
      const off = document.createElement('div');
      off.className = 'draftling-offline';
      off.textContent = 'offline';
      panel.appendChild(off);
    }
    items.forEach((text, i) => {
      const row = document.createElement('div');
      row.className = 'draftling-item';

      const body = document.createElement('span');
      body.className = 'body';
      body.textContent = (i + 1) + '. ' + text;
      body.addEventListener('click', () => {
        panel.classList.remove('open');
        post({ kind: 'insert', surface: id, index: i + 1, text: text });
      });

      const copy = document.createElement('button');
      copy.type = 'button';
      copy.className = 'copy';
      copy.textContent = 'copy';
      copy.addEventListener('click', (e) => {
        e.stopPropagation();
        copy.textContent = 'copied ✓';
        setTimeout(() => { copy.textContent = 'copy'; }, 1500);
        post({ kind: 'copy', surface: id, index: i + 1, text: text });
      });

      row.appendChild(body);
      row.appendChild(copy);
      panel.appendChild(row);
    });
  };

  rt.closePanels = () => {
    document.querySelectorAll('.draftling-panel.open').forEach((p) => {
      p.classList.remove('open');
    });
  };

  rt.setText = (id, text, rich) => {
    const el = lookup(id);
    if (rich) {
      el.textContent = text;
    } else {
      el.value = text;
    }
    // Pages track their editor state via input events, not raw DOM
    // mutations. Exactly one event per commit.
    el.dispatchEvent(new Event('input', { bubbles: true }));
  };

  rt.notify = (id, message) => {
    let host = document.body;
    try { host = lookup(id).closest('.draftling-wrap') ||
      document.querySelector('[data-draftling-for="' + id + '"]') || document.body; } catch (e) {}
    const toast = document.createElement('div');
    toast.className = 'draftling-toast';
    toast.textContent = message;
    host.appendChild(toast);
    setTimeout(() => toast.remove(), 2000);
  };

  rt.setObserver = (on) => {
    if (on) {
      if (rt.observer) return;
      rt.observer = new MutationObserver(() => post({ kind: 'mutation' }));
      rt.observer.observe(document.body || document.documentElement,
        { childList: true, subtree: true });
    } else if (rt.observer) {
      rt.observer.disconnect();
      rt.observer = null;
    }
  };

  rt.armWake = () => {
    if (rt.wakeOff) return;
    const types = ['click', 'keydown', 'pointermove', 'scroll', 'focusin'];
    let fired = false;
    const fire = () => {
      if (fired) return;
      fired = true;
      rt.disarmWake();
      post({ kind: 'wake' });
    };
    rt.wakeOff = () => {
      for (const t of types) document.removeEventListener(t, fire, true);
    };
    for (const t of types) {
      document.addEventListener(t, fire, { capture: true, passive: true });
    }
  };

  rt.disarmWake = () => {
    if (rt.wakeOff) {
      rt.wakeOff();
      rt.wakeOff = null;
    }
  };
})();
`
