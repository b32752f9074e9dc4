package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"codeintel/internal/diagram"
	"codeintel/internal/discover"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/relations"
	"codeintel/internal/watcher"
)

var (
	diagramStyle     string
	diagramMode      string
	diagramGroupBy   string
	diagramDirection string
	diagramOut       string
	diagramImage     string
	diagramWatch     bool
	diagramLanguages []string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [path]",
	Short: "Render relationships as a Mermaid or Graphviz diagram",
	Long: `Render the relationships found under path as a class diagram.

Flat mode draws every relationship as an edge. Containment mode draws
composition as members inside the owning type and keeps only inheritance and
implementation edges. Flags win over language rendering hints, which win over
the diagram section of the configuration.

Examples:
  codeintel diagram --style mermaid --mode flat
  codeintel diagram src --style dot --out classes.dot --image classes.svg
  codeintel diagram --out classes.mmd --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiagram,
}

func init() {
	f := diagramCmd.Flags()
	f.StringVar(&diagramStyle, "style", "", "Diagram syntax: mermaid or dot")
	f.StringVar(&diagramMode, "mode", "", "Composition drawing: flat or containment")
	f.StringVar(&diagramGroupBy, "group-by", "", "Cluster nodes: none or file")
	f.StringVar(&diagramDirection, "direction", "", "Layout direction: TB, BT, LR or RL")
	f.StringVar(&diagramOut, "out", "", "Write the diagram text to this file instead of stdout")
	f.StringVar(&diagramImage, "image", "", "Also render an image to this path with mmdc or dot")
	f.BoolVar(&diagramWatch, "watch", false, "Re-render whenever a source file changes")
	f.StringSliceVar(&diagramLanguages, "language", nil, "Limit to these languages")
	rootCmd.AddCommand(diagramCmd)
}

// DiagramResponseCLI describes one rendering.
type DiagramResponseCLI struct {
	Style      diagram.Style `json:"style"`
	Mode       diagram.Mode  `json:"mode"`
	GroupBy    string        `json:"groupBy"`
	Stats      diagram.Stats `json:"stats"`
	Output     string        `json:"output,omitempty"`
	Image      string        `json:"image,omitempty"`
	ImageError string        `json:"imageError,omitempty"`
	Diagram    string        `json:"diagram,omitempty"`
}

func runDiagram(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := cmd.Context()

	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	resp, ext, err := e.renderDiagram(ctx, target)
	if err != nil {
		return err
	}
	if err := e.print(resp); err != nil {
		return err
	}
	if !diagramWatch {
		return nil
	}

	filter, err := discover.NewFilter(nil, e.cfg.Relations.Exclude)
	if err != nil {
		return cierrors.New(cierrors.ConfigInvalid, "invalid relations.exclude pattern", err)
	}
	var mu sync.Mutex
	return watcher.Watch(ctx, e.root, watcher.Config{
		Extensions: ext.registry.Extensions(),
		Filter:     filter,
		Logger:     e.logger,
	}, func(events []watcher.Event) {
		mu.Lock()
		defer mu.Unlock()
		e.logger.Info("Re-rendering diagram", "changes", len(events))
		resp, _, err := e.renderDiagram(ctx, target)
		if err != nil {
			e.logger.Error("Diagram render failed", "error", err.Error())
			return
		}
		if err := e.print(resp); err != nil {
			e.logger.Error("Failed to print diagram", "error", err.Error())
		}
	})
}

// renderConfig layers flags over language hints over configuration.
func (e *env) renderConfig(ext *extraction) diagram.RenderConfig {
	rc := diagram.RenderConfig{
		Style:     diagram.Style(diagramStyle),
		Mode:      diagram.Mode(diagramMode),
		Direction: diagramDirection,
		GroupBy:   diagramGroupBy,
	}
	if lang := ext.dominantLanguage(); lang != "" {
		if ex, ok := ext.registry.Language(lang); ok {
			rc = rc.WithHints(ex.Config().Rendering)
		}
	}
	d := e.cfg.Diagram
	if rc.Style == "" {
		rc.Style = diagram.Style(d.Style)
	}
	if rc.Mode == "" {
		rc.Mode = diagram.Mode(d.Mode)
	}
	if rc.Direction == "" {
		rc.Direction = d.Direction
	}
	if rc.GroupBy == "" {
		rc.GroupBy = d.GroupBy
	}
	return rc
}

func (e *env) renderDiagram(ctx context.Context, target string) (*DiagramResponseCLI, *extraction, error) {
	start := time.Now()
	ext, err := e.extractRelations(ctx, target, diagramLanguages)
	if err != nil {
		return nil, nil, err
	}
	g := diagram.FromRelationships(relations.Flatten(ext.results))
	rc := e.renderConfig(ext)
	text, err := g.Render(rc)
	if err != nil {
		return nil, nil, cierrors.New(cierrors.ConfigInvalid, err.Error(), err)
	}

	resp := &DiagramResponseCLI{
		Style:   rc.Style,
		Mode:    rc.Mode,
		GroupBy: rc.GroupBy,
		Stats:   g.Stats(),
	}
	if diagramOut != "" {
		resp.Output = e.path(diagramOut)
		if err := os.MkdirAll(filepath.Dir(resp.Output), 0755); err != nil {
			return nil, nil, cierrors.New(cierrors.InternalError, "failed to create output directory", err)
		}
		if err := os.WriteFile(resp.Output, []byte(text), 0644); err != nil {
			return nil, nil, cierrors.New(cierrors.InternalError, "failed to write diagram", err)
		}
	} else {
		resp.Diagram = text
	}

	if diagramImage != "" {
		image := e.path(diagramImage)
		format := strings.TrimPrefix(filepath.Ext(image), ".")
		if format == "" {
			format = e.cfg.Diagram.ImageFormat
			image += "." + format
		}
		err := diagram.Convert(ctx, diagram.ConvertOptions{
			Style:          rc.Style,
			Source:         text,
			Output:         image,
			Format:         format,
			MermaidCommand: e.cfg.Diagram.MermaidCommand,
			DotCommand:     e.cfg.Diagram.DotCommand,
			Logger:         e.logger,
		})
		if err != nil {
			// The text diagram is still usable.
			e.logger.Warn("Image conversion failed", "image", image, "error", err.Error())
			resp.ImageError = err.Error()
		} else {
			resp.Image = image
		}
	}

	e.logger.Debug("Diagram rendered",
		"entities", resp.Stats.Entities,
		"style", string(rc.Style),
		"mode", string(rc.Mode),
		"duration", time.Since(start).String())
	return resp, ext, nil
}
