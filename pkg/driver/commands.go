package driver

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// WatchRedisCommands blocks on BRPOP against CommandListKey and
// translates each received line into a control-surface call, until
// Stop is called. Recognized lines: "connect[:port]", "disconnect",
// "beep:n", "tracking:on"/"tracking:off", "stray:on"/"stray:off",
// "report-stray-markers". Adapted from the teacher's
// WatchRedisCommands loop over the same BRPOP-driven list pattern.
func (d *Driver) WatchRedisCommands() {
	if d.redis == nil {
		return
	}
	log.Printf("ndi-driver: starting redis command watcher on list key: %s", CommandListKey)
	for {
		select {
		case <-d.stop:
			log.Println("ndi-driver: stopping redis command watcher")
			return
		default:
		}

		result, err := d.redis.BRPop(0*time.Second, CommandListKey)
		if err != nil {
			log.Printf("ndi-driver: error receiving command from %s: %v", CommandListKey, err)
			time.Sleep(time.Second)
			continue
		}
		if len(result) != 2 {
			continue
		}

		if err := d.dispatch(result[1]); err != nil {
			log.Printf("ndi-driver: command %q failed: %v", result[1], err)
		}
	}
}

func (d *Driver) dispatch(line string) error {
	verb, arg, _ := strings.Cut(line, ":")
	switch verb {
	case "connect":
		return d.Connect(arg)
	case "disconnect":
		return d.Disconnect()
	case "beep":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return err
		}
		return d.Beep(n)
	case "tracking":
		return d.ToggleTracking(arg == "on")
	case "stray":
		return d.ToggleStray(arg == "on")
	case "report-stray-markers":
		return d.ReportStrayMarkers()
	default:
		log.Printf("ndi-driver: unknown command received from redis list: %s", line)
		return nil
	}
}
