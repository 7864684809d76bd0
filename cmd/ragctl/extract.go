package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"docrag/internal/chunker"
	"docrag/internal/embedding"
	"docrag/internal/extract"
)

const previewRunes = 80

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Run extraction, chunking and embedding on a local file",
	Long: `Run the ingestion pipeline on a local file without a server and print
a summary. With --query the chunks are ranked against the query the same
way retrieval ranks them.

Examples:
  ragctl extract ./reglamento.pdf
  ragctl extract ./becas.docx --query "scholarship deadline" --top 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		mimeType, _ := cmd.Flags().GetString("type")
		size, _ := cmd.Flags().GetInt("chunk-size")
		overlap, _ := cmd.Flags().GetInt("overlap")
		query, _ := cmd.Flags().GetString("query")
		top, _ := cmd.Flags().GetInt("top")

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(path))
		}
		name := filepath.Base(path)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:   %s (%s)\n", name, humanize.Bytes(uint64(len(data))))
		fmt.Fprintf(out, "kind:   %s\n", extract.DetectKind(mimeType, name))

		text, err := extract.Extract(data, mimeType, name)
		if err != nil {
			return fmt.Errorf("extracting text: %w", err)
		}
		chunks, err := chunker.Split(text, size, overlap)
		if err != nil {
			return fmt.Errorf("splitting text: %w", err)
		}
		fmt.Fprintf(out, "text:   %s characters\n", humanize.Comma(int64(utf8.RuneCountInString(text))))
		fmt.Fprintf(out, "chunks: %d\n", len(chunks))

		if strings.TrimSpace(query) == "" {
			return nil
		}

		q := embedding.Embed(query)
		type ranked struct {
			chunk chunker.Chunk
			score float64
		}
		results := make([]ranked, 0, len(chunks))
		for _, c := range chunks {
			results = append(results, ranked{chunk: c, score: embedding.Cosine(q, embedding.Embed(c.Text))})
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
		if top > 0 && len(results) > top {
			results = results[:top]
		}
		fmt.Fprintln(out)
		for _, r := range results {
			fmt.Fprintf(out, "#%d  %.4f  %s\n", r.chunk.Index, r.score, preview(r.chunk.Text))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().String("type", "", "MIME type (default: guessed from the extension)")
	extractCmd.Flags().Int("chunk-size", chunker.DefaultSize, "chunk size in characters")
	extractCmd.Flags().Int("overlap", chunker.DefaultOverlap, "overlap between chunks in characters")
	extractCmd.Flags().String("query", "", "rank chunks against this query")
	extractCmd.Flags().Int("top", 5, "number of ranked chunks to print")
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "…"
}
