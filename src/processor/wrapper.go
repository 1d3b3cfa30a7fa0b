package processor

import "sync"

// DatasetWrapper holds the current working dataset for concurrent readers.
// A reload replaces the pointer; a Dataset already handed out stays valid.
type DatasetWrapper struct {
	ds *Dataset
	mu sync.RWMutex
}

// GetDS returns the current dataset, or ErrNoDataset before the first load.
func (d *DatasetWrapper) GetDS() (*Dataset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ds == nil {
		return nil, ErrNoDataset
	}
	return d.ds, nil
}

// SetDS swaps in a freshly built dataset.
func (d *DatasetWrapper) SetDS(ds *Dataset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ds = ds
}

// Reload builds a dataset with load and swaps it in only on success.
func (d *DatasetWrapper) Reload(load func() (*Dataset, error)) (*Dataset, error) {
	ds, err := load()
	if err != nil {
		return nil, err
	}
	d.SetDS(ds)
	return ds, nil
}
