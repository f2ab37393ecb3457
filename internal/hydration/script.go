package hydration

import (
	"context"
	"io"
	"strings"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/a-h/templ"
)

// ScriptProps configures the emitted script element.
type ScriptProps struct {
	Flags      []domain.Flag
	ID         string
	Nonce      string
	GlobalName string
}

// Script renders the hydration statement inside an inline script element.
// When Nonce is empty the nonce attached to ctx with templ.WithNonce is used.
func Script(props ScriptProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body, err := Encode(props.Flags, props.GlobalName)
		if err != nil {
			return err
		}

		id := props.ID
		if id == "" {
			id = DefaultScriptID
		}
		nonce := props.Nonce
		if nonce == "" {
			nonce = templ.GetNonce(ctx)
		}

		var b strings.Builder
		b.WriteString(`<script id="`)
		b.WriteString(templ.EscapeString(id))
		b.WriteString(`"`)
		if nonce != "" {
			b.WriteString(` nonce="`)
			b.WriteString(templ.EscapeString(nonce))
			b.WriteString(`"`)
		}
		b.WriteString(">")
		b.WriteString(body)
		b.WriteString("</script>")

		_, err = io.WriteString(w, b.String())
		return err
	})
}
