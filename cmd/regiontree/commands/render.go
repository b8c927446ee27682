package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

func newTable(w io.Writer, title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)

	return tbl
}

func statusLabel(passed bool) string {
	if passed {
		return color.GreenString("PASS")
	}

	return color.RedString("FAIL")
}

func printStatus(w io.Writer, passed bool, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", statusLabel(passed), fmt.Sprintf(format, args...))
}

func renderStats(w io.Writer, stats regions.Stats) {
	tbl := newTable(w, "Region set")
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"regions", humanize.Comma(int64(stats.Regions))},
		{"bytes", humanize.IBytes(stats.Bytes)},
		{"free", humanize.IBytes(stats.BytesByKind[regions.KindFree])},
		{"allocated", humanize.IBytes(stats.BytesByKind[regions.KindAllocated])},
		{"relocating", humanize.IBytes(stats.BytesByKind[regions.KindRelocating])},
		{"height", stats.Height},
		{"black height", stats.BlackHeight},
		{"arena slots", humanize.Comma(int64(stats.ArenaSlots))},
		{"arena used", humanize.Comma(int64(stats.ArenaUsed))},
	})
	tbl.Render()
}
