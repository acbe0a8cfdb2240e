package mirror

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
)

// DefaultTitleTemplate is used when a mapping declares no title template
const DefaultTitleTemplate = "Proposal #{{proposalIndex}}"

// Titler renders proposal titles from event return values
type Titler interface {
	Title(template string, values domain.ReturnValues) string
}

type templateTitler struct {
	fallback string
}

// NewTitler returns a Titler substituting {{field}} tags with return values.
// Unknown tags render as empty strings.
func NewTitler(fallback string) Titler {
	if fallback == "" {
		fallback = DefaultTitleTemplate
	}
	return &templateTitler{fallback: fallback}
}

func (t *templateTitler) Title(template string, values domain.ReturnValues) string {
	if template == "" {
		template = t.fallback
	}
	return fasttemplate.ExecuteFuncString(template, "{{", "}}", func(w io.Writer, tag string) (int, error) {
		v, ok := values.Get(strings.TrimSpace(tag))
		if !ok {
			return 0, nil
		}
		return io.WriteString(w, formatValue(v))
	})
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case *big.Int:
		if val == nil {
			return ""
		}
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
