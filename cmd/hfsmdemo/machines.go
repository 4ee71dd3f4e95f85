package main

import (
	"context"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
)

// Events understood by the demo machines.
const (
	EventPowerOn  = "PowerOn"
	EventPowerOff = "PowerOff"
	EventStart    = "Start"
	EventStop     = "Stop"
	EventFail     = "Fail"
	EventUnplug   = "Unplug"
	EventTimeout  = "Timeout"

	EventOpen = "Open"
	EventBack = "Back"
	EventSave = "Save"
	EventHome = "Home"
)

// DeviceIdle is the default time the device may sit in Idle before it powers itself down.
const DeviceIdle = 5 * time.Second

// Device is the demo context: counters the hooks maintain.
type Device struct {
	Boots int
	Runs  int
}

type (
	deviceBuilder = statemachine.Builder[string, Device, string]
	device        = statemachine.BehaviorFuncs[string, Device, string]
)

// on answers events from a table and delegates everything else.
func on(table map[string]statemachine.Response[string]) func(context.Context, string, *Device) statemachine.Response[string] {
	return func(_ context.Context, event string, _ *Device) statemachine.Response[string] {
		if resp, ok := table[event]; ok {
			return resp
		}

		return statemachine.Super[string]()
	}
}

// newDeviceMachine builds a power-managed device:
//
//	Device
//	├── Off
//	├── Booting (redirects to Idle)
//	└── Active
//	    ├── Idle (powers down after idle)
//	    └── Running
func newDeviceMachine(idle time.Duration) *deviceBuilder {
	return statemachine.NewBuilder[string, Device, string]("device", Device{}).
		State("Device", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventUnplug: statemachine.TransitionTo("Off"),
			}),
		}).
		State("Off", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventPowerOn: statemachine.TransitionTo("Booting"),
			}),
		}).
		State("Booting", device{
			EnterFn: func(_ context.Context, d *Device) statemachine.Response[string] {
				d.Boots++

				return statemachine.TransitionTo("Idle")
			},
			EventFn: on(nil),
		}).
		State("Active", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventPowerOff: statemachine.TransitionTo("Off"),
			}),
		}).
		State("Idle", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventStart:   statemachine.TransitionTo("Running"),
				EventTimeout: statemachine.TransitionTo("Off"),
			}),
			TimeoutFn: func(context.Context, *Device) optional.Value[time.Duration] {
				return optional.Some(idle)
			},
		}).
		State("Running", device{
			EnterFn: func(_ context.Context, d *Device) statemachine.Response[string] {
				d.Runs++

				return statemachine.Handled[string]()
			},
			EventFn: on(map[string]statemachine.Response[string]{
				EventStop: statemachine.TransitionTo("Idle"),
				EventFail: statemachine.Reject[string]("hardware fault"),
			}),
		}).
		Superstates(map[string]string{
			"Off":     "Device",
			"Booting": "Device",
			"Active":  "Device",
			"Idle":    "Active",
			"Running": "Active",
		})
}

// newMenuMachine builds the Root > Menu > Settings navigation tree.
func newMenuMachine() *deviceBuilder {
	return statemachine.NewBuilder[string, Device, string]("menu", Device{}).
		State("Root", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventHome: statemachine.TransitionTo("Root"),
				EventOpen: statemachine.TransitionTo("Menu"),
			}),
		}).
		State("Menu", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventOpen: statemachine.TransitionTo("Settings"),
				EventBack: statemachine.TransitionTo("Root"),
			}),
		}).
		State("Settings", device{
			EventFn: on(map[string]statemachine.Response[string]{
				EventBack: statemachine.TransitionTo("Menu"),
				EventSave: statemachine.Reject[string]("settings are read-only"),
			}),
		}).
		Superstates(map[string]string{"Menu": "Root", "Settings": "Menu"})
}

type machineDef struct {
	build   func(idle time.Duration) *deviceBuilder
	initial string
	events  []string
}

var machines = map[string]machineDef{ //nolint:gochecknoglobals
	"device": {
		build:   newDeviceMachine,
		initial: "Off",
		events:  []string{EventPowerOn, EventStart, EventStop, EventFail, EventPowerOff, EventUnplug},
	},
	"menu": {
		build:   func(time.Duration) *deviceBuilder { return newMenuMachine() },
		initial: "Root",
		events:  []string{EventOpen, EventBack, EventSave, EventHome},
	},
}
