// cachewire-bench is a small concurrent load generator for a running
// cachewire-server: N workers each issue a SET followed by repeated GETs
// against their own keyspace slice, then report throughput and latency.
//
// Usage:
//
//	cachewire-bench -addr 127.0.0.1:4321 -workers 50 -ops 2000
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cachewire/cachewire/internal/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4321", "cachewire-server address")
	workers := flag.Int("workers", 50, "number of concurrent connections")
	ops := flag.Int("ops", 2000, "GET operations issued per worker")
	valueSize := flag.Int("value-size", 64, "bytes per SET value")
	flag.Parse()

	fmt.Printf("cachewire-bench: %d workers x %d ops against %s (value-size=%d)\n",
		*workers, *ops, *addr, *valueSize)

	var (
		wg        sync.WaitGroup
		failures  atomic.Int64
		allDurs   []time.Duration
		allDursMu sync.Mutex
	)

	value := make([]byte, *valueSize)
	for i := range value {
		value[i] = byte('a' + i%26)
	}

	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			durs, err := runWorker(*addr, worker, *ops, value)
			if err != nil {
				fmt.Fprintf(os.Stderr, "worker %d: %v\n", worker, err)
				failures.Add(1)
				return
			}
			allDursMu.Lock()
			allDurs = append(allDurs, durs...)
			allDursMu.Unlock()
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	report(elapsed, allDurs, failures.Load())
}

// runWorker opens one connection, SETs its key once, then issues ops GETs
// against it, returning the latency of each GET.
func runWorker(addr string, worker, ops int, value []byte) ([]time.Duration, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	key := []byte("bench-" + strconv.Itoa(worker))

	set := wire.NewRequest(wire.OpSet)
	set.Key = key
	set.Value = value
	if err := roundTrip(conn, set); err != nil {
		return nil, fmt.Errorf("set: %w", err)
	}

	durs := make([]time.Duration, 0, ops)
	get := wire.NewRequest(wire.OpGet)
	get.Key = key
	for i := 0; i < ops; i++ {
		t0 := time.Now()
		if err := roundTrip(conn, get); err != nil {
			return durs, fmt.Errorf("get %d: %w", i, err)
		}
		durs = append(durs, time.Since(t0))
	}
	return durs, nil
}

func roundTrip(conn net.Conn, req *wire.Packet) error {
	if _, err := conn.Write(wire.Encode(req)); err != nil {
		return err
	}
	header := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return err
	}
	bodyLen := int(header[8])<<24 | int(header[9])<<16 | int(header[10])<<8 | int(header[11])
	rest := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(conn, rest); err != nil {
			return err
		}
	}
	_, err := wire.Decode(append(header, rest...))
	return err
}

func report(elapsed time.Duration, durs []time.Duration, failures int64) {
	if len(durs) == 0 {
		fmt.Println("no successful operations")
		return
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })

	var sum time.Duration
	for _, d := range durs {
		sum += d
	}
	mean := sum / time.Duration(len(durs))
	p50 := durs[len(durs)*50/100]
	p99 := durs[min(len(durs)*99/100, len(durs)-1)]

	fmt.Printf("\nelapsed=%s ops=%d failures=%d throughput=%.0f ops/s\n",
		elapsed, len(durs), failures, float64(len(durs))/elapsed.Seconds())
	fmt.Printf("latency: min=%s mean=%s p50=%s p99=%s max=%s\n",
		durs[0], mean, p50, p99, durs[len(durs)-1])
}
