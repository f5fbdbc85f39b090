package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// overrideSchema is the JSON Schema for the reply override file
const overrideSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "patternProperties": {
    "^[a-z]{2}$": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "help": {"type": "string", "minLength": 1},
        "lang_help": {"type": "string", "minLength": 1},
        "confirm": {"type": "string", "minLength": 1},
        "apology": {"type": "string", "minLength": 1},
        "try_again": {"type": "string", "minLength": 1},
        "prompt_for_text": {"type": "string", "minLength": 1}
      }
    }
  }
}`

// LoadOverride merges reply templates from a JSON file into the catalog.
// The file is validated against the override schema before any entry is
// applied; a file that fails validation changes nothing.
func (c *Catalog) LoadOverride(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read reply override: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(overrideSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate reply override: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid reply override: %s", errs[0].String())
		}
		return fmt.Errorf("invalid reply override")
	}

	var override map[string]ReplySet
	if err := json.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("failed to parse reply override: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for language, set := range override {
		merged := c.replies[language]
		if set.Help != "" {
			merged.Help = set.Help
		}
		if set.LangHelp != "" {
			merged.LangHelp = set.LangHelp
		}
		if set.Confirm != "" {
			merged.Confirm = set.Confirm
		}
		if set.Apology != "" {
			merged.Apology = set.Apology
		}
		if set.TryAgain != "" {
			merged.TryAgain = set.TryAgain
		}
		if set.PromptForText != "" {
			merged.PromptForText = set.PromptForText
		}
		c.replies[language] = merged
	}
	return nil
}

// OverrideWatcher reloads the reply override file on change
type OverrideWatcher struct {
	watcher  *fsnotify.Watcher
	catalog  *Catalog
	path     string
	logger   zerolog.Logger
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewOverrideWatcher loads the override file and watches it for changes
func NewOverrideWatcher(catalog *Catalog, path string, logger zerolog.Logger) (*OverrideWatcher, error) {
	if err := catalog.LoadOverride(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors often replace the file on save
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch override directory: %w", err)
	}

	ow := &OverrideWatcher{
		watcher:  watcher,
		catalog:  catalog,
		path:     path,
		logger:   logger.With().Str("component", "reply-override").Logger(),
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go ow.run()

	ow.logger.Info().Str("path", path).Msg("Reply override loaded and watched")
	return ow, nil
}

// Stop stops the watcher
func (ow *OverrideWatcher) Stop() error {
	close(ow.stopCh)
	return ow.watcher.Close()
}

// run processes file system events
func (ow *OverrideWatcher) run() {
	for {
		select {
		case event, ok := <-ow.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(ow.path) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				ow.scheduleReload()
			}

		case err, ok := <-ow.watcher.Errors:
			if !ok {
				return
			}
			ow.logger.Error().Err(err).Msg("Reply override watcher error")

		case <-ow.stopCh:
			return
		}
	}
}

// scheduleReload debounces the reload
func (ow *OverrideWatcher) scheduleReload() {
	if ow.timer != nil {
		ow.timer.Stop()
	}

	ow.timer = time.AfterFunc(ow.debounce, func() {
		if err := ow.catalog.LoadOverride(ow.path); err != nil {
			ow.logger.Error().Err(err).Msg("Reply override reload failed, keeping previous replies")
			return
		}
		ow.logger.Info().Msg("Reply override reloaded")
	})
}
