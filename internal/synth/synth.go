// Package synth renders the per-version binding files of pkg/pgsys from
// introspected header descriptions and a correction set.
package synth

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dave/jennifer/jen"
	"github.com/go-pkgz/syncs"
	"github.com/hashicorp/go-multierror"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

// ManifestName is the file Write records the content hashes in.
const ManifestName = "pgxgen.sum"

// Synthesizer renders binding files.
type Synthesizer struct {
	allow       *introspect.Allowlist
	fix         *Corrections
	parallelism int
	logger      *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithParallelism bounds how many versions are rendered at once.
func WithParallelism(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// New creates a Synthesizer.
func New(allow *introspect.Allowlist, fix *Corrections, logger *zap.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		allow:       allow,
		fix:         fix,
		parallelism: 4,
		logger:      logger.With(zap.String("component", "synth")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// File is one rendered source file.
type File struct {
	Name    string
	Version int // 0 for files shared by all versions
	Source  []byte
	Sum     string
}

// Result holds the rendered files. Nothing is written until Write.
type Result struct {
	Files    []File
	Manifest []byte
	Report   *Report
}

// Generate renders the files of every version in descs. Versions that
// fail are reported together; the files of the others are still
// returned.
func (s *Synthesizer) Generate(ctx context.Context, descs map[int]*introspect.Description) (*Result, error) {
	versions := make([]int, 0, len(descs))
	for v := range descs {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	var (
		mu       sync.Mutex
		files    []File
		declared = make(map[int]map[string]string)
		failed   = make(map[int]error)
	)
	wg := syncs.NewErrSizedGroup(s.parallelism, syncs.Context(ctx), syncs.Preemptive)
	for _, v := range versions {
		wg.Go(func() error {
			out, names, err := s.version(ctx, v, descs[v])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[v] = err
				return err
			}
			files = append(files, out...)
			declared[v] = names
			return nil
		})
	}
	_ = wg.Wait()

	var errs *multierror.Error
	for _, v := range versions {
		if err, ok := failed[v]; ok {
			errs = multierror.Append(errs, err)
		} else if _, ok := declared[v]; !ok && ctx.Err() != nil {
			errs = multierror.Append(errs, fmt.Errorf("host %d: %w", v, ctx.Err()))
		}
	}

	none, err := render("select_none.go", selectNone(s.allow.VersionList()))
	if err != nil {
		errs = multierror.Append(errs, err)
	} else {
		files = append(files, newFile("select_none.go", 0, none))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	res := &Result{Files: files, Report: buildReport(declared)}
	res.Manifest = manifest(files)
	return res, errs.ErrorOrNil()
}

func (s *Synthesizer) version(ctx context.Context, v int, desc *introspect.Description) ([]File, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("host %d: %w", v, err)
	}
	logger := s.logger.With(zap.Int("version", v))
	if desc.Version != v {
		return nil, nil, &Error{Version: v, Symbol: "description", Reason: fmt.Sprintf("describes host %d", desc.Version)}
	}
	entry, err := s.allow.For(v)
	if err != nil {
		return nil, nil, &Error{Version: v, Symbol: "allow-list", Reason: "no entry", Err: err}
	}
	g, err := newGen(v, desc, entry, s.fix, logger)
	if err != nil {
		return nil, nil, err
	}

	var out []File
	for _, step := range []struct {
		name  string
		build func() (*jen.File, error)
	}{
		{fmt.Sprintf("pg%d.go", v), g.renderGo},
		{fmt.Sprintf("pg%d_cgo.go", v), g.renderCgo},
	} {
		f, err := step.build()
		if err != nil {
			return nil, nil, err
		}
		src, err := render(step.name, f)
		if err != nil {
			return nil, nil, &Error{Version: v, Symbol: step.name, Reason: "generated code does not format", Err: err}
		}
		out = append(out, newFile(step.name, v, src))
	}
	logger.Info("rendered bindings", zap.Int("structs", len(g.structs)), zap.Int("names", len(g.declared)))
	return out, g.declared, nil
}

func render(name string, f *jen.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return imports.Process(name, buf.Bytes(), nil)
}

func newFile(name string, version int, src []byte) File {
	return File{Name: name, Version: version, Source: src, Sum: hex.EncodeToString(sum(src))}
}

func sum(data []byte) []byte {
	h := xxh3.Hash128(data).Bytes()
	return h[:]
}

func manifest(files []File) []byte {
	var buf bytes.Buffer
	for _, f := range files {
		fmt.Fprintf(&buf, "%s  %s\n", f.Sum, f.Name)
	}
	return buf.Bytes()
}

// File returns the rendered file called name.
func (r *Result) File(name string) (File, bool) {
	for _, f := range r.Files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Write stores the files and the manifest in dir. Each file is replaced
// by a rename, so a reader never sees a partial file.
func (r *Result) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, f := range r.Files {
		if err := writeFile(dir, f.Name, f.Source); err != nil {
			return err
		}
	}
	return writeFile(dir, ManifestName, r.Manifest)
}

func writeFile(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Stale lists the files in dir that differ from the rendered ones,
// including the manifest. A missing file is stale.
func (r *Result) Stale(dir string) ([]string, error) {
	want := append(append([]File(nil), r.Files...), File{Name: ManifestName, Source: r.Manifest})
	var stale []string
	for _, f := range want {
		have, err := os.ReadFile(filepath.Join(dir, f.Name))
		switch {
		case os.IsNotExist(err):
			stale = append(stale, f.Name)
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		case !bytes.Equal(have, f.Source):
			stale = append(stale, f.Name)
		}
	}
	return stale, nil
}
