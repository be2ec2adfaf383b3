package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

func Home() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Quiz Live</title>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <span class="tag">Quiz Live</span>
        <h1>Host a live quiz.</h1>
        <p>Create a room, share the code and play together in real time.</p>
      </header>

      <section class="panel">
        <button id="createRoom" class="primary">Create room</button>
        <div id="createResult" class="result"></div>
        <img id="joinQR" alt="" hidden/>
      </section>

      <section class="panel">
        <form id="resultForm">
          <input name="code" placeholder="Game code" autocomplete="off" required/>
          <button type="submit" class="secondary">View results</button>
        </form>
      </section>
    </main>

    <script>
      const createBtn = document.getElementById("createRoom");
      const createResult = document.getElementById("createResult");
      const joinQR = document.getElementById("joinQR");
      const resultForm = document.getElementById("resultForm");

      createBtn.addEventListener("click", async () => {
        createResult.textContent = "Creating room...";
        const res = await fetch("/api/rooms", { method: "POST" });
        const data = await res.json();
        if (!res.ok) {
          createResult.textContent = data.error || "Failed to create room.";
          return;
        }
        createResult.textContent = "Room created. Game code: " + data.code;
        joinQR.src = "/api/rooms/" + data.code + "/qr";
        joinQR.hidden = false;
      });

      resultForm.addEventListener("submit", (event) => {
        event.preventDefault();
        const code = resultForm.elements.code.value.trim().toUpperCase();
        window.location.href = "/results/" + encodeURIComponent(code);
      });
    </script>
  </body>
</html>
`)
		return err
	})
}
