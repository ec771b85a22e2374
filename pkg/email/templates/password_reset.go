package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

// PasswordReset renders the reset email body. link is escaped before it is
// written into the href and the visible text.
func PasswordReset(firstName, link string, validFor time.Duration) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := firstName
		if name == "" {
			name = "there"
		}
		href := templ.EscapeString(link)
		_, err := fmt.Fprintf(w, `<!DOCTYPE html><html><body style="font-family:sans-serif">`+
			`<p>Hi %s,</p>`+
			`<p>We received a request to reset your LogSmart password.</p>`+
			`<p><a href="%s">Reset your password</a></p>`+
			`<p>This link is valid for %d hours. If you did not request a reset you can ignore this email.</p>`+
			`<p style="color:#888">%s</p>`+
			`</body></html>`,
			templ.EscapeString(name), href, int(validFor.Hours()), href)
		return err
	})
}
