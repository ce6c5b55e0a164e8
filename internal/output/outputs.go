// Package output writes reconstruction and validation results to files.
package output

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/pflag"

	"github.com/brambozz/kmcdn/internal/logging"
	"github.com/brambozz/kmcdn/internal/utils"
)

// Item is one optional result file.
type Item[T any] struct {
	Flag       string
	Usage      string
	FileSuffix string
	Ext        string
	Default    bool
	Write      func(w io.Writer, networkName string, data T) error

	enabled bool
}

// Outputs is the set of result files a command can produce, each switched on
// by its own command line flag.
type Outputs[T any] struct {
	all        bool
	items      map[string]*Item[T]
	outputPath string
	makeDir    bool
	logger     *slog.Logger
}

func newOutputs[T any](items map[string]*Item[T]) *Outputs[T] {
	return &Outputs[T]{items: items, logger: logging.Discard()}
}

// Bind registers the --all flag and one flag per item.
func (o *Outputs[T]) Bind(fs *pflag.FlagSet) {
	fs.BoolVar(&o.all, "all", false, "save every available output")
	for _, name := range o.names() {
		item := o.items[name]
		fs.BoolVar(&item.enabled, item.Flag, item.Default, item.Usage)
	}
}

func (o *Outputs[T]) SetOutputPath(path string, makeDir bool) {
	o.outputPath = path
	o.makeDir = makeDir
}

func (o *Outputs[T]) GetOutputPath() string {
	return o.outputPath
}

func (o *Outputs[T]) SetLogger(l *slog.Logger) {
	o.logger = logging.OrDiscard(l)
}

// Enable switches an item on by name, as its flag would.
func (o *Outputs[T]) Enable(name string) error {
	item, ok := o.items[name]
	if !ok {
		return fmt.Errorf("unknown output %q", name)
	}
	item.enabled = true
	return nil
}

func (o *Outputs[T]) names() []string {
	names := make([]string, 0, len(o.items))
	for name := range o.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes every enabled item for one network. Failures of single items
// do not stop the others.
func (o *Outputs[T]) Save(networkName string, data T) error {
	var errs []error
	for _, name := range o.names() {
		item := o.items[name]
		if !item.enabled && !o.all {
			continue
		}
		if err := o.save(item, networkName, data); err != nil {
			errs = append(errs, fmt.Errorf("unable to save %s: %w", name, err))
			continue
		}
		o.logger.Debug("saved", "output", name, "network", networkName)
	}
	return errors.Join(errs...)
}

func (o *Outputs[T]) save(item *Item[T], networkName string, data T) (err error) {
	file, err := utils.OpenFile(o.makeDir, o.outputPath, item.FileSuffix, networkName, item.Ext)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return item.Write(file, networkName, data)
}
