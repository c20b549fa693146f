package serve

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/raceresults"
)

type resultsReplacer interface {
	ReplaceResults(results []model.RaceResult) error
}

type resultsWatcher struct {
	file   string
	target resultsReplacer
	log    *log.Logger
}

func newResultsWatcher(file string, target resultsReplacer) *resultsWatcher {
	return &resultsWatcher{
		file:   filepath.Clean(file),
		target: target,
		log:    log.Default().Named("serve.watch"),
	}
}

// watch reloads the results file whenever it changes until ctx is done.
// The directory is watched so files replaced by rename are picked up.
//
//nolint:cyclop // event loop
func (w *resultsWatcher) watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(w.file)); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("context done, stopping results reload")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			w.log.Debug("change detected",
				log.String("file", event.Name), log.Any("event", event))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (w *resultsWatcher) reload() {
	results, err := raceresults.LoadFile(w.file)
	if err != nil {
		// partially written files are common, the next event retries
		w.log.Warn("could not reload results", log.ErrorField(err))
		return
	}
	if err := w.target.ReplaceResults(results); err != nil {
		w.log.Warn("could not replace results", log.ErrorField(err))
		return
	}
	w.log.Info("results reloaded",
		log.String("file", w.file), log.Int("rows", len(results)))
}
