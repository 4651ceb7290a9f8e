package command

import (
	"encoding/json"
	"fmt"

	"github.com/go-omads/omads/internal/target"
	"github.com/go-omads/omads/internal/wire"
)

// DevInfoURI is the well-known datastore URI used for device-information
// Get/Put exchange (spec §4.2 "Get / Put... accept only for device-info
// exchange").
const DevInfoURI = "./devinf"

// devInfoContentType is carried on the Item Meta/Type so a peer can tell
// this payload apart from ordinary datastore items; the actual DevInf
// XML/WbXML schema is an external-collaborator concern (spec §6), so this
// module encodes the struct as JSON -- the same choice already made for
// ChangeLog's on-disk record (internal/changelog/bolt.go), not a new one.
const devInfoContentType = "application/vnd.syncml-devinf+json"

// HandleGet answers a Get addressed to DevInfoURI with a Results command
// carrying the local device description (spec §4.2 "Get for the device-info
// URI is answered with a Results command").
func (p *Processor) HandleGet(cmdID, msgID int, g *wire.Get) (*wire.Status, *wire.Results, error) {
	status := &wire.Status{Cmd: wire.KindGet, CmdRef: cmdID}

	if !targetsDevInfo(g.Items) {
		status.Code = StatusNotSupported
		return status, nil, nil
	}

	payload, err := json.Marshal(p.deps.LocalDevice)
	if err != nil {
		return status, nil, fmt.Errorf("command: marshal local device info: %w", err)
	}

	status.Code = StatusSuccess
	results := &wire.Results{
		CmdRef: cmdID,
		MsgRef: msgID,
		Items: []wire.Item{{
			Source: DevInfoURI,
			Meta:   &wire.ItemMeta{Type: devInfoContentType},
			Data:   payload,
		}},
	}
	return status, results, nil
}

// HandlePut caches the peer's device info, delivered as a Put to DevInfoURI
// (spec §4.2 "Put delivers the peer's device info, which is cached on the
// session").
func (p *Processor) HandlePut(cmdID int, put *wire.Put) (*wire.Status, error) {
	status := &wire.Status{Cmd: wire.KindPut, CmdRef: cmdID}

	for _, item := range put.Items {
		if item.Target != DevInfoURI && item.Source != DevInfoURI {
			continue
		}
		var info target.DeviceInfo
		if err := json.Unmarshal(item.Data, &info); err != nil {
			status.Code = StatusCommandFailed
			return status, fmt.Errorf("command: decode peer device info: %w", err)
		}
		p.remoteDevice = &info
	}

	status.Code = StatusSuccess
	return status, nil
}

// HandleResults merges a device-info Results into the cached remote device
// record (spec §4.2 "Results... peer's capabilities are merged into the
// session's remote-device record").
func (p *Processor) HandleResults(r *wire.Results) error {
	for _, item := range r.Items {
		if item.Source != DevInfoURI && item.Target != DevInfoURI {
			continue
		}
		var info target.DeviceInfo
		if err := json.Unmarshal(item.Data, &info); err != nil {
			return fmt.Errorf("command: decode device info results: %w", err)
		}
		p.remoteDevice = &info
	}
	return nil
}

func targetsDevInfo(items []wire.Item) bool {
	for _, it := range items {
		if it.Target == DevInfoURI || it.Source == DevInfoURI {
			return true
		}
	}
	return false
}
