package segfile_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hupe1980/segfile"
	"github.com/hupe1980/segfile/backend/cache"
	"github.com/hupe1980/segfile/backend/compress"
	"github.com/hupe1980/segfile/backend/memory"
)

// Example_roundTrip writes a file and reads it back by name.
func Example_roundTrip() {
	ctx := context.Background()
	catalog := segfile.NewCatalog(memory.New())

	f := catalog.Create("docs", "greeting")
	if _, err := f.Write(ctx, []byte("hello world")); err != nil {
		log.Fatal(err)
	}
	if err := f.Close(ctx); err != nil {
		log.Fatal(err)
	}

	r, err := catalog.Open(ctx, "docs", "greeting")
	if err != nil {
		log.Fatal(err)
	}
	data, err := r.ReadAll(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(r.ResourceDescription(), r.Length(), r.ContentSegments())
	fmt.Println(string(data))
	// Output:
	// /docs/greeting 11 1
	// hello world
}

// Example_stream copies a large payload in and streams it back out.
func Example_stream() {
	ctx := context.Background()
	store := cache.New(compress.New(memory.New(), compress.ZSTD), 8<<20)
	catalog := segfile.NewCatalog(store, segfile.WithReadAhead(4))

	f := catalog.Create("logs", "app.log")
	for i := range 1000 {
		fmt.Fprintf(f.Writer(ctx), "line %04d\n", i)
	}
	if err := f.Close(ctx); err != nil {
		log.Fatal(err)
	}

	r, err := catalog.Open(ctx, "logs", "app.log")
	if err != nil {
		log.Fatal(err)
	}
	n, err := io.Copy(io.Discard, r.Reader(ctx))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(n, r.NumSegments())
	// Output: 10000 4
}

// Example_errors shows how failures are classified.
func Example_errors() {
	ctx := context.Background()
	catalog := segfile.NewCatalog(memory.New())

	_, err := catalog.Open(ctx, "docs", "missing")
	fmt.Println(errors.Is(err, segfile.ErrNotFound))

	err = catalog.DeleteFile(ctx, "docs", "missing")
	fmt.Println(errors.Is(err, segfile.ErrUnsupported))

	f := catalog.Create("docs", "once")
	_ = f.Close(ctx)
	fmt.Println(errors.Is(f.Close(ctx), segfile.ErrInvalidState))
	// Output:
	// true
	// true
	// true
}

// Example_metrics collects basic operation counters.
func Example_metrics() {
	ctx := context.Background()
	metrics := &segfile.BasicMetricsCollector{}
	catalog := segfile.NewCatalog(memory.New(),
		segfile.WithMetricsCollector(metrics),
		segfile.WithLogger(segfile.NewLogger(nil)),
	)

	f := catalog.Create("docs", "measured")
	_, _ = f.Write(ctx, make([]byte, 5000))
	_ = f.Close(ctx)

	stats := metrics.GetStats()
	fmt.Fprintln(os.Stdout, stats.FlushCount, stats.FlushBytes, stats.CloseCount)
	// Output: 2 5000 1
}
