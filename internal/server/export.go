package server

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/folioserve/folioserve/internal/auth"
)

// handleExport streams a tar.gz snapshot of the data directory. Admin only.
// The snapshot is taken file by file; objects mutated mid-export follow
// last-write-wins like everything else.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filename := fmt.Sprintf("folioserve-export-%s.tar.gz", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(s.cfg.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.cfg.DataDir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		// Headers are already out; all we can do is log and cut the stream.
		log.Error().Err(err).Msg("export failed")
		return
	}

	if err := tw.Close(); err != nil {
		log.Error().Err(err).Msg("export tar close failed")
		return
	}
	if err := gz.Close(); err != nil {
		log.Error().Err(err).Msg("export gzip close failed")
		return
	}

	log.Info().Str("admin", id.Username).Msg("data export completed")
}
