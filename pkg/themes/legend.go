package themes

import (
	"fmt"
	"sort"
	"strings"
)

// Legend возвращает текстовую легенду темы: символ -> название тайла.
// Используется фронтендом для подписи 2D-превью.
func Legend(theme *Theme) string {
	kinds := make([]string, 0, len(theme.Tiles))
	for kind := range theme.Tiles {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Theme: %s\n", theme.Name)
	for _, kind := range kinds {
		tpl := theme.Tiles[kind]
		icon := tpl.Icon
		if icon == "" {
			icon = "?"
		}
		fmt.Fprintf(&sb, "  %s  %s (%s)\n", icon, tpl.Name, kind)
	}
	return sb.String()
}

// ParseGrid превращает текстовую сетку (строки из иконок) в 2D-массив
// имен тайлов темы. Неизвестные символы становятся пустой строкой.
func ParseGrid(theme *Theme, grid string) [][]string {
	byIcon := make(map[rune]string, len(theme.Tiles))
	for kind, tpl := range theme.Tiles {
		for _, r := range tpl.Icon {
			byIcon[r] = kind
			break
		}
	}

	lines := strings.Split(strings.TrimRight(grid, "\n"), "\n")
	out := make([][]string, len(lines))
	for y, line := range lines {
		row := make([]string, 0, len(line))
		for _, r := range line {
			row = append(row, byIcon[r])
		}
		out[y] = row
	}
	return out
}

// RenderGrid — обратная операция: 2D-массив имен тайлов -> текстовая сетка.
// Неизвестные имена рендерятся пробелом.
func RenderGrid(theme *Theme, tiles [][]string) string {
	var sb strings.Builder
	for _, row := range tiles {
		for _, kind := range row {
			if tpl, ok := theme.Tiles[kind]; ok && tpl.Icon != "" {
				sb.WriteString(tpl.Icon)
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
