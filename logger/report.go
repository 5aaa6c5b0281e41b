package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type stageStat struct {
	records int64
	bytes   int64
}

var (
	componentErrors sync.Map // map[string]*int64
	componentWarns  sync.Map // map[string]*int64
	stages          sync.Map // map[string]*stageStat
)

func counter(m *sync.Map, name string) *int64 {
	v, _ := m.LoadOrStore(name, new(int64))
	return v.(*int64)
}

func recordWarn(component string) {
	atomic.AddInt64(counter(&componentWarns, component), 1)
}

func recordError(component string) {
	atomic.AddInt64(counter(&componentErrors, component), 1)
}

// RecordStageRecords accumulates per-stage record and byte counts for the
// periodic runtime report.
func RecordStageRecords(stage string, records int, size int) {
	v, _ := stages.LoadOrStore(stage, &stageStat{})
	st := v.(*stageStat)
	atomic.AddInt64(&st.records, int64(records))
	atomic.AddInt64(&st.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and stage statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	stageData := map[string]map[string]int64{}
	stages.Range(func(k, v any) bool {
		name := k.(string)
		st := v.(*stageStat)
		stageData[name] = map[string]int64{
			"records": atomic.LoadInt64(&st.records),
			"bytes":   atomic.LoadInt64(&st.bytes),
		}
		return true
	})

	errorData := map[string]int64{}
	componentErrors.Range(func(k, v any) bool {
		errorData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	warnData := map[string]int64{}
	componentWarns.Range(func(k, v any) bool {
		warnData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors":      errorData,
		"warns":       warnData,
		"stages":      stageData,
		"goroutines":  runtime.NumGoroutine(),
		"cpu_percent": cpuPct,
		"memory_mb":   int64(memStats.Used) / 1024 / 1024,
		"disk_mb":     int64(diskStats.Used) / 1024 / 1024,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
	)

	for component, count := range errorData {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("Errors"),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(component)}},
			Value:      aws.Float64(float64(count)),
		})
	}
	for component, count := range warnData {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("Warns"),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(component)}},
			Value:      aws.Float64(float64(count)),
		})
	}

	for name, stats := range stageData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("StageRecords"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("stage"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["records"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("StageBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("stage"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
