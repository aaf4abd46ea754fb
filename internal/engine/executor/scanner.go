package executor

import (
	"strings"

	"vivigo/internal/compiler/ast"
	"vivigo/internal/engine/runtime"
)

// scanAhead walks up to lookahead statements starting at pc, collecting the
// image and non-music audio resources they reference, so the front-end can
// start loading before they execute. Show targets resolve through the
// character registry's image tag. Any control-flow statement ends the scan:
// what runs after it is not knowable here.
func scanAhead(stmts []ast.Stmt, pc, lookahead int, ctx *runtime.Ctx) (images, audios []string) {
	steps := 0
	for pc < len(stmts) && steps < lookahead {
		stmt := stmts[pc]
		pc++
		steps++

		switch s := stmt.(type) {
		case *ast.Show:
			base := s.Target
			if ch, ok := ctx.Characters[s.Target]; ok && ch.ImageTag != "" {
				base = ch.ImageTag
			}
			var suffixes []string
			for _, attr := range s.Attrs {
				if attr.Op == ast.AttrAdd {
					suffixes = append(suffixes, attr.Tag)
				}
			}
			if len(suffixes) > 0 {
				base = base + "_" + strings.Join(suffixes, "_")
			}
			images = append(images, base)

		case *ast.Scene:
			if s.Image != nil {
				parts := append([]string{s.Image.Prefix}, s.Image.Attrs...)
				images = append(images, strings.Join(parts, "_"))
			}

		case *ast.Audio:
			if s.Action != ast.AudioPlay {
				continue
			}
			// background music streams; only short effects are preloaded
			if s.Channel == "music" || strings.HasPrefix(s.Resource, "bgm_") {
				continue
			}
			audios = append(audios, s.Resource)

		case *ast.Label, *ast.Jump, *ast.Call, *ast.Choice, *ast.If:
			return images, audios
		}
	}
	return images, audios
}
