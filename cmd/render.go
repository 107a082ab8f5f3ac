// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pterm/pterm"
)

// generic converts any result (an envelope or a decoded remote response) into
// plain JSON values so local and remote output render identically.
func generic(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult prints a result envelope for humans.
func renderResult(res map[string]any) {
	msg, _ := res["message"].(string)
	if res["status"] != "success" {
		pterm.Error.Println(msg)
		if fields, ok := res["fields"].(map[string]any); ok {
			for _, name := range sortedKeys(fields) {
				pterm.Printf("  • %s: %v\n", name, fields[name])
			}
		}
		return
	}
	pterm.Success.Println(msg)

	switch {
	case res["data"] != nil:
		renderRows(res["data"])
	case res["columns"] != nil:
		if data := columnTable(res["columns"]); data != nil {
			_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
		} else {
			renderList(res["columns"])
		}
	case res["matching_tables"] != nil:
		renderList(res["matching_tables"])
	case res["suggestions"] != nil:
		renderList(res["suggestions"])
	case res["tables"] != nil:
		renderList(res["tables"])
	case res["schemas"] != nil:
		if grouped, ok := res["schemas"].(map[string]any); ok {
			renderGrouped(grouped)
		} else {
			renderList(res["schemas"])
		}
	}
}

func renderList(v any) {
	items, _ := v.([]any)
	if len(items) == 0 {
		pterm.Println("  (none)")
		return
	}
	bullets := make([]pterm.BulletListItem, 0, len(items))
	for _, it := range items {
		bullets = append(bullets, pterm.BulletListItem{Level: 0, Text: fmt.Sprint(it)})
	}
	_ = pterm.DefaultBulletList.WithItems(bullets).Render()
}

// columnTable lays out typed column descriptions. It returns nil for a plain
// list of names.
func columnTable(v any) pterm.TableData {
	items, _ := v.([]any)
	if len(items) == 0 {
		return nil
	}
	if _, ok := items[0].(map[string]any); !ok {
		return nil
	}
	keys := []string{"column", "type", "extra", "comment"}
	data := pterm.TableData{{"Column", "Type", "Extra", "Comment"}}
	for _, it := range items {
		col, _ := it.(map[string]any)
		line := make([]string, len(keys))
		for i, k := range keys {
			if v, ok := col[k]; ok && v != nil {
				line[i] = cell(v)
			}
		}
		data = append(data, line)
	}
	return data
}

func renderGrouped(grouped map[string]any) {
	var bullets []pterm.BulletListItem
	for _, schema := range sortedKeys(grouped) {
		bullets = append(bullets, pterm.BulletListItem{Level: 0, Text: pterm.Bold.Sprint(schema)})
		tables, _ := grouped[schema].([]any)
		for _, t := range tables {
			bullets = append(bullets, pterm.BulletListItem{Level: 1, Text: fmt.Sprint(t)})
		}
	}
	if len(bullets) == 0 {
		pterm.Println("  (none)")
		return
	}
	_ = pterm.DefaultBulletList.WithItems(bullets).Render()
}

func renderRows(v any) {
	rows, _ := v.([]any)
	if len(rows) == 0 {
		pterm.Println("  (no rows)")
		return
	}
	first, _ := rows[0].(map[string]any)
	cols := sortedKeys(first)
	data := pterm.TableData{cols}
	for _, r := range rows {
		row, _ := r.(map[string]any)
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = cell(row[c])
		}
		data = append(data, line)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func cell(v any) string {
	if v == nil {
		return pterm.Gray("NULL")
	}
	s := fmt.Sprint(v)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
