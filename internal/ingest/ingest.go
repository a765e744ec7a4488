// internal/ingest/ingest.go
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"argscreen/internal/fasta"
)

// Report summarises one LoadBatch call.
type Report struct {
	FilesRead   int
	FilesFailed int
	Records     int
	Failed      []string // basenames, in input order
}

// ReadFile parses one file. Read errors and panics are logged and turned
// into an empty result so one bad file cannot fail a batch.
func ReadFile(ctx context.Context, path string, log *zap.Logger) (recs []fasta.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("error reading file",
				zap.String("file", filepath.Base(path)),
				zap.String("panic", fmt.Sprint(r)))
			recs, ok = nil, false
		}
	}()
	recs, err := fasta.ReadFile(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("error reading file", zap.String("file", filepath.Base(path)), zap.Error(err))
		}
		return nil, false
	}
	return recs, true
}

// LoadBatch reads files on a bounded pool of workers. Each file is handled
// by exactly one worker; records keep their in-file order and the merged
// slice follows the order of files.
func LoadBatch(ctx context.Context, files []string, workers int, log *zap.Logger) ([]fasta.Record, Report) {
	if log == nil {
		log = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	type result struct {
		idx  int
		recs []fasta.Record
		ok   bool
	}
	jobs := make(chan int, workers*2)
	results := make(chan result, workers*2)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-jobs:
					if !ok {
						return
					}
					recs, good := ReadFile(ctx, files[i], log)
					select {
					case results <- result{idx: i, recs: recs, ok: good}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
	feed:
		for i := range files {
			select {
			case <-ctx.Done():
				break feed
			case jobs <- i:
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	perFile := make([][]fasta.Record, len(files))
	done := make([]bool, len(files))
	for r := range results {
		perFile[r.idx] = r.recs
		done[r.idx] = r.ok
	}

	var rep Report
	var out []fasta.Record
	for i, recs := range perFile {
		if done[i] {
			rep.FilesRead++
		} else {
			rep.FilesFailed++
			rep.Failed = append(rep.Failed, filepath.Base(files[i]))
		}
		out = append(out, recs...)
	}
	rep.Records = len(out)
	return out, rep
}
