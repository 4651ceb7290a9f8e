package target

// CTCap describes one datastore's supported content types and versions for
// one protocol version, as exchanged via DevInf during Get/Put (spec §4.2,
// §3a; supplemented from original_source/src/syncelements/SyncMLCTCap.cpp).
type CTCap struct {
	// ContentType is the MIME type (e.g. "text/x-vcard").
	ContentType string

	// VerCT is the list of supported versions for ContentType (e.g. "2.1", "3.0").
	VerCT []string
}

// DatastoreInfo describes one remote datastore advertised in DevInf.
type DatastoreInfo struct {
	SourceURI        string
	DisplayName      string
	MaxGUIDSize      int
	PreferredType    string
	PreferredVersion string
	CTCaps           []CTCap
}

// DeviceInfo is the device-capability record exchanged via Get/Put of the
// devinf URI (spec §4.2), supplemented from original_source/src/DeviceInfo.h
// and src/syncelements/SyncMLDevInf.cpp. It is cached per-session, not as a
// process-wide singleton (spec §9 Design Note: re-architected to avoid
// shared mutable state across concurrent sessions).
type DeviceInfo struct {
	DeviceID        string
	Manufacturer    string
	Model           string
	SoftwareVersion string
	HardwareVersion string

	// SupportsUTC indicates support for UTC timestamps.
	SupportsUTC bool

	// SupportsLargeObjects indicates support for large-object reassembly
	// (spec §3, "Large-object-in-progress").
	SupportsLargeObjects bool

	// SupportsNumberOfChanges indicates the device reports an item count in
	// the Sync command's NumberOfChanges element.
	SupportsNumberOfChanges bool

	Datastores []DatastoreInfo
}

// DatastoreByURI returns the DatastoreInfo advertised for uri, if any.
func (d *DeviceInfo) DatastoreByURI(uri string) (DatastoreInfo, bool) {
	for _, ds := range d.Datastores {
		if ds.SourceURI == uri {
			return ds, true
		}
	}
	return DatastoreInfo{}, false
}
