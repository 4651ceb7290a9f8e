package xmlcodec

import (
	"github.com/go-omads/omads/internal/wire"
)

func fromDoc(doc docSyncML) wire.Message {
	msg := wire.Message{
		Header: wire.Header{
			VerDTD:    doc.Header.VerDTD,
			VerProto:  doc.Header.VerProto,
			SessionID: doc.Header.SessionID,
			MsgID:     doc.Header.MsgID,
			Target:    doc.Header.Target.LocURI,
			Source:    doc.Header.Source.LocURI,
			RespURI:   doc.Header.RespURI,
			NoResp:    doc.Header.NoResp != nil,
		},
	}
	if doc.Header.Cred != nil {
		msg.Header.Cred = &wire.Cred{
			Type:   doc.Header.Cred.Meta.Type,
			Format: doc.Header.Cred.Meta.Format,
			Data:   []byte(doc.Header.Cred.Data),
		}
	}
	if doc.Header.Meta != nil {
		msg.Header.MaxMsgSize = doc.Header.Meta.MaxMsgSize
		msg.Header.MaxObjSize = doc.Header.Meta.MaxObjSize
	}

	for _, s := range doc.Body.Status {
		msg.Commands = append(msg.Commands, statusFromDoc(s))
	}
	for _, a := range doc.Body.Alert {
		msg.Commands = append(msg.Commands, alertFromDoc(a))
	}
	for _, s := range doc.Body.Sync {
		msg.Commands = append(msg.Commands, syncFromDoc(s))
	}
	for _, a := range doc.Body.Add {
		msg.Commands = append(msg.Commands, &wire.Add{CmdID: a.CmdID, Items: itemsFromDoc(a.Items)})
	}
	for _, r := range doc.Body.Replace {
		msg.Commands = append(msg.Commands, &wire.Replace{CmdID: r.CmdID, Items: itemsFromDoc(r.Items)})
	}
	for _, d := range doc.Body.Delete {
		msg.Commands = append(msg.Commands, &wire.Delete{CmdID: d.CmdID, Items: itemsFromDoc(d.Items)})
	}
	for _, m := range doc.Body.Map {
		msg.Commands = append(msg.Commands, mapFromDoc(m))
	}
	for _, g := range doc.Body.Get {
		msg.Commands = append(msg.Commands, &wire.Get{CmdID: g.CmdID, Items: itemsFromDoc(g.Items)})
	}
	for _, p := range doc.Body.Put {
		msg.Commands = append(msg.Commands, &wire.Put{CmdID: p.CmdID, Items: itemsFromDoc(p.Items)})
	}
	for _, r := range doc.Body.Results {
		msg.Commands = append(msg.Commands, &wire.Results{CmdID: r.CmdID, MsgRef: r.MsgRef, CmdRef: r.CmdRef, Items: itemsFromDoc(r.Items)})
	}
	if doc.Body.Final != nil {
		msg.Final = true
		msg.Commands = append(msg.Commands, &wire.Final{})
	}

	return msg
}

func statusFromDoc(s docStatus) *wire.Status {
	out := &wire.Status{
		CmdID:     s.CmdID,
		MsgRef:    s.MsgRef,
		CmdRef:    s.CmdRef,
		Cmd:       kindFromName(s.Cmd),
		TargetRef: s.TargetRef,
		SourceRef: s.SourceRef,
		Code:      s.Data,
	}
	if s.Chal != nil {
		out.Chal = &wire.Chal{
			Type:   s.Chal.Meta.Type,
			Format: s.Chal.Meta.Format,
		}
		if s.Chal.Meta.NextNonce != "" {
			out.Chal.NextNonce = []byte(s.Chal.Meta.NextNonce)
		}
	}
	return out
}

func alertFromDoc(a docAlert) *wire.Alert {
	out := &wire.Alert{CmdID: a.CmdID, Data: a.Data}
	if a.Item != nil {
		item := &wire.AlertItem{
			Target: a.Item.Target.LocURI,
			Source: a.Item.Source.LocURI,
		}
		if a.Item.Meta.Anchor != nil {
			item.Meta.Last = a.Item.Meta.Anchor.Last
			item.Meta.Next = a.Item.Meta.Anchor.Next
		}
		item.Meta.MaxObjSize = a.Item.Meta.MaxObjSize
		out.Item = item
	}
	return out
}

func syncFromDoc(s docSync) *wire.Sync {
	out := &wire.Sync{
		CmdID:           s.CmdID,
		Target:          s.Target.LocURI,
		Source:          s.Source.LocURI,
		NumberOfChanges: s.NumberOfChanges,
	}
	for _, a := range s.Add {
		out.Commands = append(out.Commands, &wire.Add{CmdID: a.CmdID, Items: itemsFromDoc(a.Items)})
	}
	for _, r := range s.Replace {
		out.Commands = append(out.Commands, &wire.Replace{CmdID: r.CmdID, Items: itemsFromDoc(r.Items)})
	}
	for _, d := range s.Delete {
		out.Commands = append(out.Commands, &wire.Delete{CmdID: d.CmdID, Items: itemsFromDoc(d.Items)})
	}
	return out
}

func mapFromDoc(m docMap) *wire.Map {
	out := &wire.Map{CmdID: m.CmdID, Target: m.Target.LocURI, Source: m.Source.LocURI}
	for _, mi := range m.MapItems {
		out.MapItems = append(out.MapItems, wire.MapItem{Target: mi.Target.LocURI, Source: mi.Source.LocURI})
	}
	return out
}

func itemsFromDoc(items []docItem) []wire.Item {
	out := make([]wire.Item, len(items))
	for i, it := range items {
		w := wire.Item{Data: []byte(it.Data), MoreData: it.MoreData != nil}
		if it.Target != nil {
			w.Target = it.Target.LocURI
		}
		if it.Source != nil {
			w.Source = it.Source.LocURI
		}
		if it.Meta != nil {
			w.Meta = &wire.ItemMeta{
				Type:    it.Meta.Type,
				Format:  it.Meta.Format,
				Version: it.Meta.Version,
				Size:    it.Meta.Size,
			}
		}
		out[i] = w
	}
	return out
}

func kindFromName(cmd string) wire.Kind {
	switch cmd {
	case "Alert":
		return wire.KindAlert
	case "Sync":
		return wire.KindSync
	case "Add":
		return wire.KindAdd
	case "Replace":
		return wire.KindReplace
	case "Delete":
		return wire.KindDelete
	case "Map":
		return wire.KindMap
	case "Get":
		return wire.KindGet
	case "Put":
		return wire.KindPut
	case "Results":
		return wire.KindResults
	case "Final":
		return wire.KindFinal
	default:
		return wire.KindStatus
	}
}

func toDoc(msg wire.Message) docSyncML {
	doc := docSyncML{
		Header: docHeader{
			VerDTD:    msg.Header.VerDTD,
			VerProto:  msg.Header.VerProto,
			SessionID: msg.Header.SessionID,
			MsgID:     msg.Header.MsgID,
			Target:    docURI{LocURI: msg.Header.Target},
			Source:    docURI{LocURI: msg.Header.Source},
			RespURI:   msg.Header.RespURI,
		},
	}
	if msg.Header.NoResp {
		doc.Header.NoResp = &struct{}{}
	}
	if msg.Header.Cred != nil {
		doc.Header.Cred = &docCred{
			Meta: docMeta{Type: msg.Header.Cred.Type, Format: msg.Header.Cred.Format},
			Data: string(msg.Header.Cred.Data),
		}
	}
	if msg.Header.MaxMsgSize > 0 || msg.Header.MaxObjSize > 0 {
		doc.Header.Meta = &docMeta{MaxMsgSize: msg.Header.MaxMsgSize, MaxObjSize: msg.Header.MaxObjSize}
	}

	for _, cmd := range msg.Commands {
		switch c := cmd.(type) {
		case *wire.Status:
			doc.Body.Status = append(doc.Body.Status, statusToDoc(c))
		case *wire.Alert:
			doc.Body.Alert = append(doc.Body.Alert, alertToDoc(c))
		case *wire.Sync:
			doc.Body.Sync = append(doc.Body.Sync, syncToDoc(c))
		case *wire.Add:
			doc.Body.Add = append(doc.Body.Add, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Replace:
			doc.Body.Replace = append(doc.Body.Replace, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Delete:
			doc.Body.Delete = append(doc.Body.Delete, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Map:
			doc.Body.Map = append(doc.Body.Map, mapToDoc(c))
		case *wire.Get:
			doc.Body.Get = append(doc.Body.Get, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Put:
			doc.Body.Put = append(doc.Body.Put, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Results:
			doc.Body.Results = append(doc.Body.Results, docResults{CmdID: c.CmdID, MsgRef: c.MsgRef, CmdRef: c.CmdRef, Items: itemsToDoc(c.Items)})
		case *wire.Final:
			doc.Body.Final = &struct{}{}
		}
	}
	if msg.Final && doc.Body.Final == nil {
		doc.Body.Final = &struct{}{}
	}

	return doc
}

func statusToDoc(s *wire.Status) docStatus {
	out := docStatus{
		CmdID:     s.CmdID,
		MsgRef:    s.MsgRef,
		CmdRef:    s.CmdRef,
		Cmd:       capitalize(s.Cmd),
		TargetRef: s.TargetRef,
		SourceRef: s.SourceRef,
		Data:      s.Code,
	}
	if s.Chal != nil {
		out.Chal = &docChal{Meta: docMeta{Type: s.Chal.Type, Format: s.Chal.Format, NextNonce: string(s.Chal.NextNonce)}}
	}
	return out
}

func capitalize(k wire.Kind) string {
	switch k {
	case wire.KindAlert:
		return "Alert"
	case wire.KindSync:
		return "Sync"
	case wire.KindAdd:
		return "Add"
	case wire.KindReplace:
		return "Replace"
	case wire.KindDelete:
		return "Delete"
	case wire.KindMap:
		return "Map"
	case wire.KindGet:
		return "Get"
	case wire.KindPut:
		return "Put"
	case wire.KindResults:
		return "Results"
	case wire.KindFinal:
		return "Final"
	default:
		return "Status"
	}
}

func alertToDoc(a *wire.Alert) docAlert {
	out := docAlert{CmdID: a.CmdID, Data: a.Data}
	if a.Item != nil {
		out.Item = &docAlertItem{
			Target: docURI{LocURI: a.Item.Target},
			Source: docURI{LocURI: a.Item.Source},
			Meta:   docMeta{MaxObjSize: a.Item.Meta.MaxObjSize},
		}
		if a.Item.Meta.Last != "" || a.Item.Meta.Next != "" {
			out.Item.Meta.Anchor = &docAnchor{Last: a.Item.Meta.Last, Next: a.Item.Meta.Next}
		}
	}
	return out
}

func syncToDoc(s *wire.Sync) docSync {
	out := docSync{
		CmdID:           s.CmdID,
		Target:          docURI{LocURI: s.Target},
		Source:          docURI{LocURI: s.Source},
		NumberOfChanges: s.NumberOfChanges,
	}
	for _, cmd := range s.Commands {
		switch c := cmd.(type) {
		case *wire.Add:
			out.Add = append(out.Add, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Replace:
			out.Replace = append(out.Replace, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		case *wire.Delete:
			out.Delete = append(out.Delete, docItems{CmdID: c.CmdID, Items: itemsToDoc(c.Items)})
		}
	}
	return out
}

func mapToDoc(m *wire.Map) docMap {
	out := docMap{CmdID: m.CmdID, Target: docURI{LocURI: m.Target}, Source: docURI{LocURI: m.Source}}
	for _, mi := range m.MapItems {
		out.MapItems = append(out.MapItems, docMapItem{Target: docURI{LocURI: mi.Target}, Source: docURI{LocURI: mi.Source}})
	}
	return out
}

func itemsToDoc(items []wire.Item) []docItem {
	out := make([]docItem, len(items))
	for i, it := range items {
		d := docItem{Data: string(it.Data)}
		if it.Target != "" {
			d.Target = &docURI{LocURI: it.Target}
		}
		if it.Source != "" {
			d.Source = &docURI{LocURI: it.Source}
		}
		if it.Meta != nil {
			d.Meta = &docMeta{Type: it.Meta.Type, Format: it.Meta.Format, Version: it.Meta.Version, Size: it.Meta.Size}
		}
		if it.MoreData {
			d.MoreData = &struct{}{}
		}
		out[i] = d
	}
	return out
}
