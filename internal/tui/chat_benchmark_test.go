package tui

import (
	"strings"
	"testing"
)

func BenchmarkViewportRenderComparison(b *testing.B) {
	chunks := makeBenchmarkChunks(256)

	b.Run("render_every_tool_event", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c := newBenchmarkChat()
			for _, chunk := range chunks {
				c.streamBuf.WriteString(chunk)
				c.refreshViewport()
			}
		}
	})

	b.Run("throttled_render_every_12_events", func(b *testing.B) {
		b.ReportAllocs()
		const batchSize = 12
		for i := 0; i < b.N; i++ {
			c := newBenchmarkChat()
			for j, chunk := range chunks {
				c.streamBuf.WriteString(chunk)
				if (j+1)%batchSize == 0 {
					c.refreshViewport()
				}
			}
			if len(chunks)%batchSize != 0 {
				c.refreshViewport()
			}
		}
	})
}

func newBenchmarkChat() *Chat {
	c := newTestChat()
	c.width = 120
	c.height = 40
	c.viewport.Width = c.width
	c.viewport.Height = c.height - 2
	return c
}

func makeBenchmarkChunks(n int) []string {
	chunk := strings.Repeat("x", 32) + "\n- list item\n`code`\n"
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = chunk
	}
	return chunks
}
