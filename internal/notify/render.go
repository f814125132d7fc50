package notify

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akhundovte/shopwatch/internal/domain"
)

// The message is rendered for the delivery channel's rich-text (HTML)
// mode. Scraped names and labels are escaped by the template engine;
// only the markup written here reaches the channel as tags. Lines are
// grouped by variant type when the product carries a taxonomy,
// mirroring how the shop presents the family.
const messageTemplate = `<b>{{.ProductName}}</b> — {{.ShopLabel}}
<a href="{{.ProductURL}}">{{.Reference}}</a>
{{- range .Groups}}
{{- if .Name}}
<b>{{.Name}}</b>{{if .URL}} (<a href="{{.URL}}">link</a>){{end}}
{{- end}}
{{- range .Lines}}
{{- if .Option}}
{{.Option}}:
{{- end}}
{{- range .Prices}}
  {{.Field}}: {{.Old}} &#8594; {{.New}}{{if .Diff}} ({{.Diff}}%){{end}}
{{- end}}
{{- if .Available}}
  back in stock
{{- end}}
{{- if .Discount}}
  discount: {{.Discount}}%
{{- end}}
{{- end}}
{{- end}}
`

var msgTmpl = template.Must(template.New("notice").Parse(messageTemplate))

type messageView struct {
	ProductName string
	ProductURL  string
	Reference   string
	ShopLabel   string
	Groups      []groupView
}

type groupView struct {
	Name  string
	URL   string
	Lines []lineView
}

type lineView struct {
	Option    string
	Available bool
	Prices    []priceView
	Discount  *int64
}

type priceView struct {
	Field string
	Old   string
	New   string
	Diff  string
}

// renderMessage builds the view model for one (user, product) group and
// executes the template.
func renderMessage(notice *ProductNotice) (string, error) {
	view := messageView{
		ProductName: notice.ProductName,
		ProductURL:  notice.ProductURL,
		Reference:   notice.Reference,
		ShopLabel:   notice.ShopLabel,
	}

	types := notice.ProductParams.TypesByCode()
	if len(types) > 0 {
		grouped := make(map[string]*groupView)
		var order []string
		for _, line := range notice.Lines {
			code := ""
			if line.StockParams != nil {
				code = line.StockParams.TypeCode
			}
			g, ok := grouped[code]
			if !ok {
				t := types[code]
				g = &groupView{Name: t.Name, URL: t.URL}
				grouped[code] = g
				order = append(order, code)
			}
			g.Lines = append(g.Lines, buildLine(line))
		}
		for _, code := range order {
			view.Groups = append(view.Groups, *grouped[code])
		}
	} else {
		g := groupView{}
		for _, line := range notice.Lines {
			g.Lines = append(g.Lines, buildLine(line))
		}
		view.Groups = []groupView{g}
	}

	var sb strings.Builder
	if err := msgTmpl.Execute(&sb, view); err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	return sb.String(), nil
}

func buildLine(line NoticeLine) lineView {
	lv := lineView{
		Available: line.Data.Available,
		Discount:  line.Discount,
	}
	if line.StockParams != nil {
		lv.Option = line.StockParams.OptionName
	}
	for _, field := range []domain.PriceField{domain.PriceFieldBase, domain.PriceFieldSale, domain.PriceFieldCard} {
		pair, ok := line.Data.Price[field]
		if !ok {
			continue
		}
		lv.Prices = append(lv.Prices, priceView{
			Field: string(field),
			Old:   FormatPrice(pair.Old),
			New:   FormatPrice(pair.New),
			Diff:  formatDelta(pair.Old, pair.New),
		})
	}
	return lv
}

// formatDelta renders the percentage change 100 - 100*new/old, rounded to
// an integer; deltas under 1% in magnitude keep two decimal places.
func formatDelta(oldVal, newVal *decimal.Decimal) string {
	if oldVal == nil || newVal == nil || oldVal.IsZero() {
		return ""
	}
	hundred := decimal.NewFromInt(100)
	diff := hundred.Sub(hundred.Mul(*newVal).Div(*oldVal))
	if diff.Abs().LessThan(decimal.NewFromInt(1)) {
		return diff.StringFixed(2)
	}
	return fmt.Sprintf("%d", diff.IntPart())
}

// FormatPrice prints a price without a fractional part when it is whole,
// grouping thousands with spaces.
func FormatPrice(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	var str string
	if d.Equal(d.Truncate(0)) {
		str = d.StringFixed(0)
	} else {
		str = d.StringFixed(2)
	}
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	intPart, frac, hasFrac := strings.Cut(str, ".")
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	out := strings.Join(groups, " ")
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
