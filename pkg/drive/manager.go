package drive

import (
	"fmt"
	"sort"
	"sync"
)

// Options carries per-driver settings. Links is shared by every driver that
// serves its own bytes.
type Options struct {
	Memory MemoryOptions
	Local  LocalOptions
	S3     S3Options
	Links  *LinkSigner
}

// Factory builds a Driver from Options.
type Factory func(Options) (Driver, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"memory": func(o Options) (Driver, error) {
			o.Memory.Links = o.Links
			return NewMemory(o.Memory), nil
		},
		"local": func(o Options) (Driver, error) {
			o.Local.Links = o.Links
			return NewLocal(o.Local), nil
		},
		"s3": func(o Options) (Driver, error) {
			return NewS3(o.S3)
		},
	}
)

// Register lets you plug in a custom driver at boot time.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	factories[name] = f
	factoriesMu.Unlock()
}

// Open builds the named driver.
//
//	d, err := drive.Open(config.DriveDriver(), opts)
func Open(name string, opts Options) (Driver, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("drive: unknown driver %q (available: %v)", name, Names())
	}
	return f(opts)
}

// Names lists the registered driver names.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
