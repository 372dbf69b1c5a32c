// Package printer печатает чеки: формирует текст, сохраняет его в каталог,
// передаёт команде печати и обслуживает очередь печати после оплаты.
package printer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/mmeshcher/playhouse/internal/billing"
)

const (
	// DefaultTitle задаёт заголовок чека по умолчанию.
	DefaultTitle = "PLAYHOUSE"
	lineWidth    = 32
	dateLayout   = "02/01/06, 15:04"
)

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"center": center,
	"money":  formatMoney,
	"line":   func() string { return strings.Repeat("-", lineWidth) },
}).Parse(`{{center .Title}}
{{center "Admission receipt"}}
{{line}}
Customer ID: {{.ShortID}}
Token: {{.Token}}
Entry: {{.Entry}}
Exit:  {{.Exit}}
Duration: {{.Minutes}} min
Base{{if .R.IncludedMinutes}} ({{.R.IncludedMinutes}} min){{end}}: {{money .R.BaseAmount}} {{.R.Currency}}
Extra: {{money .R.ExtraFee}} {{.R.Currency}}
TOTAL: {{money .R.Total}} {{.R.Currency}}
{{line}}
Currency: {{.R.Currency}}
Printed: {{.Printed}}
{{center "Thank you!"}}
`))

type receiptView struct {
	Title   string
	ShortID string
	Token   string
	Entry   string
	Exit    string
	Printed string
	Minutes int
	R       billing.Receipt
}

// Renderer формирует текст чека для ленточного принтера.
type Renderer struct {
	Title    string
	Location *time.Location
	// Template заменяет стандартный макет чека, если задан.
	Template *template.Template
}

// Render возвращает текстовое представление чека.
func (rn Renderer) Render(r billing.Receipt) (string, error) {
	title := rn.Title
	if title == "" {
		title = DefaultTitle
	}
	loc := rn.Location
	if loc == nil {
		loc = time.Local
	}

	token := r.Token
	if token == "" {
		token = "-"
	}

	printedAt := r.PrintedAt
	if printedAt.IsZero() {
		printedAt = time.Now()
	}

	view := receiptView{
		Title:   title,
		ShortID: ShortID(r.SessionID),
		Token:   token,
		Entry:   r.EntryTime.In(loc).Format(dateLayout),
		Exit:    r.ExitTime.In(loc).Format(dateLayout),
		Printed: printedAt.In(loc).Format(dateLayout),
		Minutes: r.IncludedMinutes + r.ExtraMinutes,
		R:       r,
	}

	tmpl := rn.Template
	if tmpl == nil {
		tmpl = receiptTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.String(), nil
}

// ShortID возвращает последние шесть символов идентификатора сессии в верхнем регистре.
func ShortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(id)
}

func center(s string) string {
	if len(s) >= lineWidth {
		return s
	}
	return strings.Repeat(" ", (lineWidth-len(s))/2) + s
}

// formatMoney отделяет разряды пробелами: 1250000 -> "1 250 000".
func formatMoney(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
