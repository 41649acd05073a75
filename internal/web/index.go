package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/klytics/sheetkit/cmd/version"
)

type indexPageData struct {
	Provider string
	Version  string
	MaxMB    int64
}

var indexPageTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>sheetkit</title>
    <style>
      body { font-family: ui-sans-serif, system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1f2937; }
      form { display: grid; gap: .75rem; padding: 1rem; border: 1px solid #e5e7eb; border-radius: 8px; }
      textarea { min-height: 5rem; font: inherit; }
      table { border-collapse: collapse; margin-top: 1rem; font-size: .9rem; }
      th, td { border: 1px solid #e5e7eb; padding: .25rem .5rem; text-align: left; }
      th { background: #f3f4f6; }
      pre { background: #f9fafb; border: 1px solid #e5e7eb; padding: .75rem; white-space: pre-wrap; }
      .error { color: #b91c1c; }
      .muted { color: #6b7280; font-size: .85rem; }
    </style>
  </head>
  <body>
    <h1>sheetkit</h1>
    <p class="muted">Provider: {{.Provider}} &middot; version {{.Version}} &middot; uploads up to {{.MaxMB}} MB</p>

    <form id="refine">
      <label>Spreadsheet (.xlsx) <input type="file" name="file" accept=".xlsx" required /></label>
      <label>Instruction
        <textarea name="instruction" placeholder="Remove rows with missing values and sort by age" required></textarea>
      </label>
      <div>
        <button type="button" id="preview-btn">Preview</button>
        <button type="submit">Refine</button>
      </div>
    </form>

    <div id="status"></div>
    <div id="result"></div>
    <button id="download" hidden>Download cleaned_data.xlsx</button>

    <script>
      const form = document.getElementById('refine');
      const statusEl = document.getElementById('status');
      const resultEl = document.getElementById('result');
      const download = document.getElementById('download');
      let current = null;

      function renderTable(t) {
        const tbl = document.createElement('table');
        const head = tbl.insertRow();
        t.columns.forEach(c => { const th = document.createElement('th'); th.textContent = c; head.appendChild(th); });
        t.rows.forEach(r => { const tr = tbl.insertRow(); r.forEach(v => { tr.insertCell().textContent = v === null ? '' : v; }); });
        return tbl;
      }

      async function post(path) {
        statusEl.textContent = 'Working…';
        statusEl.className = '';
        resultEl.replaceChildren();
        download.hidden = true;
        const res = await fetch(path, { method: 'POST', body: new FormData(form) });
        const body = await res.json();
        if (!res.ok) {
          statusEl.textContent = body.error;
          statusEl.className = 'error';
          return null;
        }
        statusEl.textContent = '';
        return body;
      }

      document.getElementById('preview-btn').addEventListener('click', async () => {
        const body = await post('/api/preview');
        if (body) {
          statusEl.textContent = body.totalRows + ' rows in ' + body.sheet;
          resultEl.appendChild(renderTable(body.table));
        }
      });

      form.addEventListener('submit', async (e) => {
        e.preventDefault();
        const body = await post('/api/refine');
        if (!body) return;
        if (body.status === 'recovered') {
          current = body.table;
          resultEl.appendChild(renderTable(body.table));
          download.hidden = false;
        } else {
          statusEl.textContent = body.diagnostic;
          statusEl.className = 'error';
          const pre = document.createElement('pre');
          pre.textContent = body.raw;
          resultEl.appendChild(pre);
        }
      });

      download.addEventListener('click', async () => {
        const res = await fetch('/api/export', { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(current) });
        if (!res.ok) { statusEl.textContent = (await res.json()).error; statusEl.className = 'error'; return; }
        const url = URL.createObjectURL(await res.blob());
        const a = document.createElement('a');
        a.href = url; a.download = 'cleaned_data.xlsx'; a.click();
        URL.revokeObjectURL(url);
      });
    </script>
  </body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := indexPageTmpl.Execute(&buf, indexPageData{
		Provider: s.refiner.Provider.Name(),
		Version:  version.Version,
		MaxMB:    s.maxUpload >> 20,
	})
	if err != nil {
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
