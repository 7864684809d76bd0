package extract

import (
	"regexp"
	"strings"

	"docrag/internal/pkg/textclean"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlock  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)

	htmlEntities = strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
	)
)

func extractHTML(raw string) string {
	text := scriptBlock.ReplaceAllString(raw, "")
	text = styleBlock.ReplaceAllString(text, "")
	text = anyTag.ReplaceAllString(text, " ")
	text = htmlEntities.Replace(text)
	return textclean.CollapseSpace(text)
}
