package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Results renders the final standings of one session.
func Results(page ResultPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Results `)
		b.WriteString(esc(page.GameCode))
		b.WriteString(`</title>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <span class="tag">Quiz Live</span>
        <h1>Final standings</h1>
        <p>Game `)
		b.WriteString(esc(page.GameCode))
		b.WriteString(` &middot; `)
		b.WriteString(esc(page.CreatedAt))
		b.WriteString(`</p>
      </header>
`)
		if len(page.Rows) == 0 {
			b.WriteString(`      <p class="empty">Nobody answered in this game.</p>
`)
		} else {
			b.WriteString(`      <table class="results">
        <thead>
          <tr><th>#</th><th>Player</th><th>Score</th><th>Correct</th><th>Wrong</th><th>Avg response (s)</th></tr>
        </thead>
        <tbody>
`)
			for _, row := range page.Rows {
				b.WriteString(`          <tr><td>`)
				b.WriteString(itoa(row.Rank))
				b.WriteString(`</td><td>`)
				if row.Avatar != "" {
					b.WriteString(`<span class="avatar">`)
					b.WriteString(esc(row.Avatar))
					b.WriteString(`</span> `)
				}
				b.WriteString(esc(row.Name))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(row.Score))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(row.Correct))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(row.Wrong))
				b.WriteString(`</td><td>`)
				b.WriteString(esc(row.AverageResponseTime))
				b.WriteString("</td></tr>\n")
			}
			b.WriteString(`        </tbody>
      </table>
`)
		}
		b.WriteString(`    </main>
  </body>
</html>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
