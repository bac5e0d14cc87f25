package sqlbook

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Load builds a registry from a .sql file or a directory tree of .sql files
//
// for a directory, every .sql file contributes to the namespace of its directory and each subdirectory
// is a child namespace, e.g. "blogs/blogs.sql" queries are looked up as "blogs.<name>"
//
// a file named "<name>.<dialect>.sql" (e.g. "users.pg.sql") tags its queries with that dialect
//
// options are the same as for FromString
func Load(fs afero.Fs, path string, driver Driver, options ...any) (*Registry, error) {
	b, err := newBuilder(driver, options)
	if err != nil {
		return nil, err
	}
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if err = b.loadFile(fs, path, b.root); err != nil {
			return nil, err
		}
		return b.registry(), nil
	}
	err = afero.Walk(fs, path, func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !strings.EqualFold(filepath.Ext(name), ".sql") {
			return nil
		}
		rel, err := filepath.Rel(path, filepath.Dir(name))
		if err != nil {
			return err
		}
		ns, err := b.namespaceFor(rel, name)
		if err != nil {
			return err
		}
		return b.loadFile(fs, name, ns)
	})
	if err != nil {
		return nil, err
	}
	return b.registry(), nil
}

// MustLoad is the same as Load except that it panics on error
func MustLoad(fs afero.Fs, path string, driver Driver, options ...any) *Registry {
	r, err := Load(fs, path, driver, options...)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadPath is Load from the os filesystem
func LoadPath(path string, driver Driver, options ...any) (*Registry, error) {
	return Load(afero.NewOsFs(), path, driver, options...)
}

func (b *builder) loadFile(fs afero.Fs, name string, ns *Namespace) error {
	f, err := fs.Open(name)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	defs, err := Parse(f, ParseOptions{
		Source:   name,
		Dialect:  fileDialect(name, b.opts.variants),
		Variants: b.opts.variants,
	})
	if err != nil {
		return err
	}
	return b.addAll(ns, defs)
}

// fileDialect returns the dialect named by a "<name>.<dialect>.sql" file name - the dialect may be given
// by name ("users.postgres.sql") or by its variant prefix ("users.pg.sql")
func fileDialect(name string, variants Variants) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	tag := strings.TrimPrefix(filepath.Ext(stem), ".")
	if tag == "" {
		return ""
	}
	ordered := variants.ordered()
	for _, dialect := range ordered {
		if strings.EqualFold(tag, dialect) {
			return dialect
		}
	}
	for _, dialect := range ordered {
		if strings.EqualFold(tag+"_", variants[dialect]) {
			return dialect
		}
	}
	return ""
}
