package viewer

import (
	"fmt"
	"html/template"
	"io"
)

// Container contract: one slot per page, sized by the page's aspect ratio so
// nothing shifts when a raster arrives. Rendered pages become <img> elements
// carrying the configured CSS class; a failed page shows its message inline
// in its own slot only.
const containerTemplate = `<div class="pdf-container" id="pdf-{{.SessionID}}"
     data-session="{{.SessionID}}"
     data-proximity-margin="{{.ProximityMargin}}"
     data-page-class="{{.PageClass}}">
{{- range .Slots}}
  <div class="pdf-page-slot" data-page="{{.ID}}" data-state="{{.State}}" style="aspect-ratio: {{.Ratio}}">
  {{- if eq .State "rendered"}}
    <img class="{{$.PageClass}}" src="{{.Src}}" alt="Page {{.ID}}" width="{{.Width}}" height="{{.Height}}">
  {{- else if eq .State "failed"}}
    <div class="pdf-page-error">Page {{.ID}} failed to render: {{.Error}}</div>
  {{- end}}
  </div>
{{- end}}
<script>
(function () {
  var root = document.getElementById("pdf-{{.SessionID}}");
  var margin = parseInt(root.dataset.proximityMargin, 10) || 600;
  var cls = root.dataset.pageClass;
  var base = "/viewer/" + root.dataset.session;

  function fill(slot, page) {
    fetch(base + "/page/" + page).then(function (resp) {
      if (resp.status === 409) { return void setTimeout(function () { fill(slot, page); }, 500); }
      if (!resp.ok) {
        return resp.text().then(function (msg) {
          slot.dataset.state = "failed";
          slot.innerHTML = '<div class="pdf-page-error"></div>';
          slot.firstChild.textContent = "Page " + page + " failed to render: " + msg;
        });
      }
      return resp.blob().then(function (blob) {
        var img = document.createElement("img");
        img.className = cls;
        img.alt = "Page " + page;
        img.src = URL.createObjectURL(blob);
        slot.dataset.state = "rendered";
        slot.replaceChildren(img);
      });
    });
  }

  var io = new IntersectionObserver(function (entries) {
    entries.forEach(function (e) {
      if (!e.isIntersecting) return;
      var slot = e.target;
      io.unobserve(slot);
      var page = slot.dataset.page;
      fetch(base + "/near/" + page, { method: "POST" }).then(function () { fill(slot, page); });
    });
  }, { rootMargin: margin + "px 0px", threshold: 0 });

  root.querySelectorAll('.pdf-page-slot[data-state="pending"]').forEach(function (s) { io.observe(s); });
})();
</script>
</div>
`

var containerTpl = template.Must(template.New("container").Parse(containerTemplate))

type containerSlot struct {
	ID     int
	State  State
	Ratio  string
	Src    string
	Width  int
	Height int
	Error  string
}

type containerData struct {
	SessionID       string
	ProximityMargin int
	PageClass       string
	Slots           []containerSlot
}

// WriteContainer renders the session's HTML container with the current state
// of every placeholder.
func (s *Session) WriteContainer(w io.Writer) error {
	phs := s.Placeholders()
	data := containerData{
		SessionID:       s.ID,
		ProximityMargin: s.cfg.ProximityMargin,
		PageClass:       s.cfg.PageClass,
		Slots:           make([]containerSlot, len(phs)),
	}
	for i, p := range phs {
		data.Slots[i] = containerSlot{
			ID:     p.ID,
			State:  p.State,
			Ratio:  fmt.Sprintf("%.4f", p.AspectRatio),
			Src:    fmt.Sprintf("/viewer/%s/page/%d", s.ID, p.ID),
			Width:  p.Width,
			Height: p.Height,
			Error:  p.Error,
		}
	}
	return containerTpl.Execute(w, data)
}
