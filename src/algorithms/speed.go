package algorithms

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/seuros/gopher-flow/src/flow"
)

const (
	travelTimeLayout = "20060102T150405"
	earthRadius      = 6371302
)

// AverageSpeedGraph builds a graph computing the average traffic speed per
// weekday and hour. The times source carries edge traversals with enter and
// leave timestamps; the coords source carries edge endpoint coordinates in
// (lon, lat) order. Output records look like
// {"weekday": "Mon", "hour": 4, "speed": 44.812} with speed in km/h.
func AverageSpeedGraph(timesSource, coordsSource string) *flow.Graph {
	times := flow.NewGraph(timesSource, flow.WithGraphName("travel_times"))
	times.Map(weekHourMapper)

	lengths := flow.NewGraph(coordsSource, flow.WithGraphName("edge_lengths"))
	lengths.Map(edgeLengthMapper)

	times.Join(lengths, flow.JoinLeft, "edge_id")
	times.Map(speedMapper)
	times.Sort("weekday", "hour")
	times.Reduce(averageSpeedReducer, "weekday", "hour")
	return times
}

// weekHourMapper splits a traversal into weekday, hour and the seconds spent
// on the edge. The weekday and hour come from the leave timestamp.
func weekHourMapper(record flow.Record) ([]flow.Record, error) {
	leave, leaveSeconds, err := parseTravelTime(record, "leave_time")
	if err != nil {
		return nil, err
	}
	enter, enterSeconds, err := parseTravelTime(record, "enter_time")
	if err != nil {
		return nil, err
	}
	spent := float64(leave.Unix()) + leaveSeconds - float64(enter.Unix()) - enterSeconds
	return []flow.Record{{
		"weekday":    leave.Format("Mon"),
		"hour":       leave.Hour(),
		"spent_time": spent,
		"edge_id":    record["edge_id"],
	}}, nil
}

func parseTravelTime(record flow.Record, column string) (time.Time, float64, error) {
	raw, ok := record[column].(string)
	if !ok || len(raw) < len(travelTimeLayout) {
		return time.Time{}, 0, fmt.Errorf("column %q does not hold a timestamp, got %v", column, record[column])
	}
	parsed, err := time.Parse(travelTimeLayout, raw[:len(travelTimeLayout)])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("column %q: %w", column, err)
	}
	fraction := 0.0
	if rest := raw[len(travelTimeLayout):]; rest != "" {
		fraction, err = strconv.ParseFloat(rest, 64)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("column %q: fractional seconds %q: %w", column, rest, err)
		}
	}
	return parsed, fraction, nil
}

// edgeLengthMapper computes the length in meters of an edge from its start
// and end coordinates with the spherical law of cosines, taking the first
// element of each pair in the latitude role and the second in the longitude
// role. For (lon, lat) pairs this is not the true great-circle distance.
func edgeLengthMapper(record flow.Record) ([]flow.Record, error) {
	start, err := coordinates(record, "start")
	if err != nil {
		return nil, err
	}
	end, err := coordinates(record, "end")
	if err != nil {
		return nil, err
	}
	lon1, lat1 := radians(start[0]), radians(start[1])
	lon2, lat2 := radians(end[0]), radians(end[1])
	length := earthRadius * math.Acos(math.Sin(lon1)*math.Sin(lon2)+
		math.Cos(lon1)*math.Cos(lon2)*math.Cos(lat2-lat1))
	return []flow.Record{{"edge_id": record["edge_id"], "length": length}}, nil
}

func coordinates(record flow.Record, column string) ([2]float64, error) {
	list, ok := record[column].([]interface{})
	if !ok || len(list) != 2 {
		return [2]float64{}, fmt.Errorf("column %q does not hold a (lon, lat) pair, got %v", column, record[column])
	}
	var pair [2]float64
	for i, element := range list {
		value, err := asFloat(element)
		if err != nil {
			return [2]float64{}, fmt.Errorf("column %q: %w", column, err)
		}
		pair[i] = value
	}
	return pair, nil
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// speedMapper adds the speed in m/s from the joined length and spent time.
func speedMapper(record flow.Record) ([]flow.Record, error) {
	length, err := asFloat(record["length"])
	if err != nil {
		return nil, fmt.Errorf("length: %w", err)
	}
	spent, err := asFloat(record["spent_time"])
	if err != nil {
		return nil, fmt.Errorf("spent_time: %w", err)
	}
	out := make(flow.Record, len(record)+1)
	for column, value := range record {
		out[column] = value
	}
	out["speed"] = length / spent
	return []flow.Record{out}, nil
}

// averageSpeedReducer averages the group's speeds and converts m/s to km/h.
func averageSpeedReducer(group []flow.Record) ([]flow.Record, error) {
	sum := 0.0
	for _, record := range group {
		speed, err := asFloat(record["speed"])
		if err != nil {
			return nil, fmt.Errorf("speed: %w", err)
		}
		sum += speed
	}
	return []flow.Record{{
		"weekday": group[0]["weekday"],
		"hour":    group[0]["hour"],
		"speed":   (18 * sum) / (5 * float64(len(group))),
	}}, nil
}
