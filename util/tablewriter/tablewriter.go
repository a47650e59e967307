/*
tablewriter.go

MIT License

Copyright (c) Foxglove Technologies Inc

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

/*
Derived from https://github.com/foxglove/foxglove-cli/blob/main/foxglove/util/tablewriter/tablewriter.go

Tables that fit the terminal are printed as a grid with centered headers.
Tables wider than the terminal are printed one record at a time.
*/

package tablewriter

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DefaultWidth is the terminal width assumed when none is known.
const DefaultWidth = 80

func width(s string) int {
	return utf8.RuneCountInString(s)
}

func cellWidths(headers []string, data [][]string) (int, []int) {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = width(header) + 4 // two spaces each side
	}
	for _, row := range data {
		for i, column := range row {
			if w := width(column) + 2; widths[i] < w {
				widths[i] = w
			}
		}
	}
	// headers are centered, so the padding must split evenly.
	for i, header := range headers {
		if (widths[i]-width(header))%2 == 1 {
			widths[i]++
		}
	}
	total := len(headers) + 1
	for _, w := range widths {
		total += w
	}
	return total, widths
}

/*
printGrid outputs a table formatted like this:

	|  a  |  b  |
	|-----|-----|
	| 1   | x   |
*/
func printGrid(w io.Writer, headers []string, data [][]string) {
	_, widths := cellWidths(headers, data)
	sb := &strings.Builder{}
	sb.WriteString("|")
	for i, header := range headers {
		padding := strings.Repeat(" ", (widths[i]-width(header))/2)
		sb.WriteString(padding + header + padding + "|")
	}
	sb.WriteString("\n|")
	for _, cw := range widths {
		sb.WriteString(strings.Repeat("-", cw) + "|")
	}
	sb.WriteString("\n")
	for _, row := range data {
		sb.WriteString("|")
		for i, col := range row {
			sb.WriteString(" " + col + strings.Repeat(" ", widths[i]-width(col)-1) + "|")
		}
		sb.WriteString("\n")
	}
	fmt.Fprint(w, sb.String())
}

/*
printRecords outputs a series of records formatted like this:

	-[ RECORD 1 ]+---------------
	a            | 1
	b            | x
*/
func printRecords(w io.Writer, termWidth int, headers []string, data [][]string) {
	var headerWidth, valueWidth int
	for _, header := range headers {
		headerWidth = max(headerWidth, width(header))
	}
	for _, row := range data {
		for _, col := range row {
			valueWidth = max(valueWidth, width(col))
		}
	}
	headerWidth = max(headerWidth, len(fmt.Sprintf("-[ RECORD %d ]", len(data))))

	// dashes extend past the widest value unless that would wrap.
	extent := min(valueWidth+15, termWidth-headerWidth-1)
	extent = max(extent, 1)
	dashes := strings.Repeat("-", extent)
	for i, row := range data {
		label := fmt.Sprintf("-[ RECORD %d ]", i+1)
		fmt.Fprintf(w, "%s%s+%s\n", label, strings.Repeat("-", headerWidth-len(label)), dashes)
		for j, col := range row {
			fmt.Fprintf(w, "%s%s| %s\n", headers[j], strings.Repeat(" ", headerWidth-width(headers[j])), col)
		}
	}
}

// Print writes headers and data to w, choosing the grid or record layout
// based on termWidth. A termWidth of zero uses DefaultWidth.
func Print(w io.Writer, termWidth int, headers []string, data [][]string) {
	if termWidth <= 0 {
		termWidth = DefaultWidth
	}
	total, _ := cellWidths(headers, data)
	if termWidth < total && len(data) > 0 {
		printRecords(w, termWidth, headers, data)
		return
	}
	printGrid(w, headers, data)
}
