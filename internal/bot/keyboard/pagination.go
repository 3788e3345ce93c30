package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/internal/i18n"
)

// PaginationButtons returns up to three buttons (prev, current page, next)
// allowing the caller to paginate lists using a shared action prefix.
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []command.Button {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]command.Button, 0, 3)

	if page > 1 {
		data, _ := EncodeCallback(action, strconv.Itoa(page-1))
		buttons = append(buttons, command.Button{
			Text: translated(t, "pagination.prev", "◀️ Prev"),
			Data: data,
		})
	}

	data, _ := EncodeCallback(action, strconv.Itoa(page))
	buttons = append(buttons, command.Button{
		Text: paginationLabel(t, page, totalPages),
		Data: data,
	})

	if page < totalPages {
		data, _ := EncodeCallback(action, strconv.Itoa(page+1))
		buttons = append(buttons, command.Button{
			Text: translated(t, "pagination.next", "Next ▶️"),
			Data: data,
		})
	}

	return buttons
}

func paginationLabel(t i18n.Translator, page, total int) string {
	label := translated(t, "pagination.page", "")
	if label == "" {
		label = "Page {{.Page}}/{{.Total}}"
	}

	label = strings.ReplaceAll(label, "{{.Page}}", strconv.Itoa(page))
	label = strings.ReplaceAll(label, "{{.Total}}", strconv.Itoa(total))

	if strings.Contains(label, "{{") {
		return fmt.Sprintf("Page %d/%d", page, total)
	}

	return label
}
