package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	MeasurementPrefix = "hass:"
	ValueField        = "value"

	TagEntityID    = "entity.id"
	TagEntityName  = "entity.name"
	TagDeviceName  = "device.name"
	TagDeviceArea  = "device.area"
	TagDeviceClass = "device.class"
)

// Point is a single time-series write.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        time.Time
}

// NewPoint builds a point for an entity kind carrying one numeric value field.
func NewPoint(kind string, value float64, ts time.Time) *Point {
	return &Point{
		Measurement: MeasurementPrefix + kind,
		Tags:        map[string]string{},
		Fields:      map[string]interface{}{ValueField: value},
		Time:        ts,
	}
}

// AddTag sets a tag and returns the point, so calls can be chained.
func (p *Point) AddTag(key, value string) *Point {
	p.Tags[key] = value
	return p
}

// String renders the point roughly in line protocol form with tags sorted by key. Intended for logging only.
func (p *Point) String() string {
	var sb strings.Builder
	sb.WriteString(p.Measurement)
	keys := maps.Keys(p.Tags)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, ",%s=%s", k, p.Tags[k])
	}
	fields := maps.Keys(p.Fields)
	slices.Sort(fields)
	for i, k := range fields {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%v", k, p.Fields[k])
	}
	fmt.Fprintf(&sb, " %d", p.Time.UnixNano())
	return sb.String()
}
