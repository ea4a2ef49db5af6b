package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.trai.ch/zerr"
)

// CacheList prints the entries of the module cache.
func (a *App) CacheList(w io.Writer) error {
	if !a.cacheEnabled() {
		a.logger.Warn("module cache is disabled")
		return nil
	}

	entries, err := a.store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.logger.Info("module cache at " + a.store.Dir() + " is empty")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "URL\tSIZE\tRETRIEVED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", e.URL, e.Size, e.RetrievedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return zerr.Wrap(err, "failed to write cache listing")
	}
	return nil
}

// Clean removes every entry of the module cache.
func (a *App) Clean(_ context.Context) error {
	if a.store == nil {
		a.logger.Warn("module cache is disabled")
		return nil
	}

	a.logger.Info("removing module cache at " + a.store.Dir() + "...")
	n, err := a.store.Purge()
	if err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("removed %d cached modules", n))
	return nil
}

func (a *App) cacheEnabled() bool {
	return a.store != nil && a.config.CacheEnabled
}
