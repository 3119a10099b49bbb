package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"storybook/composer"
	"storybook/core"
	"storybook/metrics"
	"storybook/pipeline"
	"storybook/session"
	"storybook/shutdown"
	"storybook/story"
)

// progressPrinter writes render progress for a person at a terminal.
type progressPrinter struct {
	out io.Writer
}

func (p progressPrinter) header(title string) {
	fmt.Fprintln(p.out)
	color.New(color.FgCyan, color.Bold).Fprintf(p.out, "━━━ %s ━━━\n", title)
}

func (p progressPrinter) scene(sc story.Scene) {
	fmt.Fprintf(p.out, "  %d. %s\n", sc.Index, sc.Title)
}

func (p progressPrinter) outcome(pr pipeline.Progress) {
	o := pr.Outcome
	counter := color.New(color.FgHiBlack).Sprintf("[%d/%d]", pr.Completed, pr.Total)
	switch {
	case o.OK():
		color.New(color.FgGreen).Fprintf(p.out, "  ✓ scene %d", o.Index)
		fmt.Fprintf(p.out, " %s %s\n", counter, color.New(color.FgHiBlack).Sprintf("%d bytes in %s", o.ImageBytes, o.Duration.Round(time.Millisecond)))
	case o.Skipped:
		color.New(color.FgHiBlack).Fprintf(p.out, "  ○ scene %d skipped", o.Index)
		fmt.Fprintf(p.out, " %s\n", counter)
	default:
		color.New(color.FgRed).Fprintf(p.out, "  ✗ scene %d", o.Index)
		fmt.Fprintf(p.out, " %s\n", counter)
		color.New(color.FgRed).Fprintf(p.out, "    └─ %s: %s\n", o.Failure.Code, o.Failure.Cause)
	}
}

func (p progressPrinter) summary(path string, doc composer.Document, failed int) {
	fmt.Fprintln(p.out)
	clr := color.New(color.FgGreen, color.Bold)
	if failed > 0 {
		clr = color.New(color.FgYellow, color.Bold)
	}
	clr.Fprintf(p.out, "Wrote %s", path)
	fmt.Fprintf(p.out, " (%d pages, %d illustrated)\n", len(doc.Pages), doc.ImagesDrawn())
	for _, page := range doc.Pages {
		if page.LinesTruncated > 0 {
			color.New(color.FgYellow).Fprintf(p.out, "  ! page %d: %d lines did not fit\n", page.Index, page.LinesTruncated)
		}
		if page.MissingGlyphs > 0 {
			color.New(color.FgYellow).Fprintf(p.out, "  ! page %d: %d characters have no glyph in the font\n", page.Index, page.MissingGlyphs)
		}
		if page.Image == composer.ImageDecodeFailed {
			color.New(color.FgYellow).Fprintf(p.out, "  ! page %d: illustration could not be decoded\n", page.Index)
		}
	}
}

func runRender(ctx context.Context, cmd *cli.Command) error {
	env := envFrom(ctx)
	cfg, log := env.Cfg, env.Log.Zap().Named("render")
	out := progressPrinter{out: env.Out}

	params, err := story.LoadParamsFile(cmd.String("params"))
	if err != nil {
		return core.ErrParamsFile(cmd.String("params"), err)
	}
	dest, err := filepath.Abs(cmd.String("out"))
	if err != nil {
		return err
	}

	mgr := shutdown.NewManager(log, shutdown.WithParent(ctx))
	mgr.Register("temp-files", shutdown.PriorityTempFiles,
		shutdown.CleanupTempFiles(log, filepath.Dir(dest), shutdown.TempFilePattern))
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			log.Warn("Cleanup after render failed", zap.Error(err))
		}
	}()

	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	p, _, err := buildPipeline(cfg, log, store, mgr)
	if err != nil {
		return err
	}

	id, err := core.GenerateSessionID()
	if err != nil {
		return err
	}
	sess := session.New(id)

	scenes, err := p.Synthesize(sess, params)
	if err != nil {
		return err
	}
	out.header(fmt.Sprintf("%q", params.Idea))
	for _, sc := range scenes {
		out.scene(sc)
	}

	failed := 0
	if !cmd.Bool("no-images") {
		out.header("Illustrations")
		outcomes, err := p.GenerateAll(mgr.Context(), sess, out.outcome)
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if !o.OK() {
				failed++
			}
		}
		if err := mgr.Context().Err(); err != nil {
			return fmt.Errorf("render interrupted: %w", err)
		}
	}

	doc, err := p.Export(sess)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(dest, doc.Bytes); err != nil {
		return err
	}
	log.Info("Document written",
		zap.String("path", dest),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("images", doc.ImagesDrawn()),
		zap.Int("failed", failed))
	out.summary(dest, doc, failed)

	if failed > 0 {
		return &partialError{failed: failed, total: len(scenes)}
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place, so
// an interrupted render never leaves a truncated PDF behind.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, shutdown.TempFilePattern)
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to write document: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("unable to write document: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to move document into place: %w", err)
	}
	return nil
}

func runInspect(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("no document has been specified")
	}
	in, err := composer.InspectFile(path)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s: %d pages\n", filepath.Base(path), in.PageCount())
	for _, page := range in.Pages {
		fmt.Fprintln(w)
		color.New(color.Bold).Fprintf(w, "page %d\n", page.Number)
		if page.Err != nil {
			color.New(color.FgRed).Fprintf(w, "  unreadable: %v\n", page.Err)
			continue
		}
		fmt.Fprintln(w, page.Text)
	}
	return nil
}
