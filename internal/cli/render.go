package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/johndosdos/chatterfeed/internal/locale"
	"github.com/johndosdos/chatterfeed/internal/model"
)

// Renderer prints the feed. It implements feed.View.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
	me  string
	loc locale.Locale
	now func() time.Time
}

// NewRenderer renders for the user with uid me.
func NewRenderer(out io.Writer, me string, loc locale.Locale) *Renderer {
	return &Renderer{out: out, me: me, loc: loc, now: time.Now}
}

// FormatMessage renders one feed entry. Own messages are right-aligned
// within width.
func FormatMessage(m model.Message, me string, now time.Time, width int) string {
	var b strings.Builder

	when := ""
	if !m.CreatedAt.IsZero() {
		when = humanize.RelTime(m.CreatedAt, now, "ago", "from now")
	}

	body := m.Caption()
	if m.HasImage() {
		if body != "" {
			body = "[image] " + m.ImageURL + " " + body
		} else {
			body = "[image] " + m.ImageURL
		}
	}

	if me != "" && m.UID == me {
		line := fmt.Sprintf("%s  (%s)", body, when)
		if pad := width - len([]rune(line)); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteString(line)
		return b.String()
	}

	fmt.Fprintf(&b, "%s: %s  (%s)", m.Sender, body, when)
	return b.String()
}

// ShowMessages redraws the whole feed.
func (r *Renderer) ShowMessages(msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	fmt.Fprintf(r.out, "\n--- %s messages ---\n", humanize.Comma(int64(len(msgs))))
	for _, m := range msgs {
		fmt.Fprintln(r.out, FormatMessage(m, r.me, now, 72))
	}
}

// ScrollToLatest reprints the input prompt below the newest message.
func (r *Renderer) ScrollToLatest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s > ", r.loc.T(locale.InputPlaceholder))
}

// Notice prints an out-of-band line such as an error.
func (r *Renderer) Notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "! "+format+"\n", args...)
}
