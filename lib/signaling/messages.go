// Copyright (C) 2026 The ClipboardPush Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package signaling

import "encoding/json"

// ProtocolVersion is the join handshake's protocol version tag.
const ProtocolVersion = "4.0"

// ClientTypePC is the only client_type this agent ever advertises.
const ClientTypePC = "pc"

// probeTTLMs is how long the server should trust a probe_url's
// reachability before re-checking it.
const probeTTLMs = 30000

// JoinPayload is sent as the single argument of the "join" event
// immediately after the Socket.IO namespace connects.
type JoinPayload struct {
	ProtocolVersion string          `json:"protocol_version"`
	Room            string          `json:"room"`
	ClientID        string          `json:"client_id"`
	ClientType      string          `json:"client_type"`
	JoinedAtMs      int64           `json:"joined_at_ms"`
	Network         JoinNetworkInfo `json:"network"`
	Probe           JoinProbeInfo   `json:"probe"`
}

// JoinNetworkInfo is the join payload's "network" sub-object: everything
// the server needs to decide whether two peers are L2-local.
type JoinNetworkInfo struct {
	PrivateIP     string `json:"private_ip"`
	CIDR          string `json:"cidr"`
	NetworkIDHash string `json:"network_id_hash"`
	NetworkEpoch  uint64 `json:"network_epoch"`
}

// JoinProbeInfo is the join payload's "probe" sub-object, telling the
// server how to verify this device is LAN-reachable.
type JoinProbeInfo struct {
	ProbeURL   string `json:"probe_url"`
	ProbeTTLMs int64  `json:"probe_ttl_ms"`
}

// RoomStats is the "room_stats" event payload.
type RoomStats struct {
	Count int `json:"count"`
}

// PeerEvicted is the "peer_evicted" event payload.
type PeerEvicted struct {
	DeviceID string `json:"device_id,omitempty"`
}

// RelayEnvelope is the body POSTed to the cloud relay's HTTP fan-out
// endpoint (`/api/relay`) for events that bypass the signaling socket.
type RelayEnvelope struct {
	Room     string      `json:"room"`
	Event    string      `json:"event"`
	SenderID string      `json:"sender_id"`
	Data     interface{} `json:"data"`
}

// ClipboardSyncRelayData is the "data" object of a clipboard_sync
// RelayEnvelope.
type ClipboardSyncRelayData struct {
	Room      string `json:"room"`
	Content   string `json:"content"`
	Encrypted bool   `json:"encrypted"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// FileSyncRelayData is the "data" object of a file_sync RelayEnvelope.
type FileSyncRelayData struct {
	Room        string `json:"room"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp"`
}

// ClipboardSync is the "clipboard_sync" event payload carrying a sealed
// text envelope.
type ClipboardSync struct {
	Envelope string `json:"envelope"`
	Origin   string `json:"origin_device_id"`
}

// FileAvailable is the "file_available" event payload: an announcement
// that a peer has a file ready to push, before either side knows whether
// LAN or cloud relay will be used.
type FileAvailable struct {
	TransferID string `json:"transfer_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	Origin     string `json:"origin_device_id"`
	LANPort    int    `json:"lan_port"`
	LANHost    string `json:"lan_host"`
}

// TransferCommand is the "transfer_command" event payload, sent by the
// receiver to direct the sender to a specific transport.
type TransferCommand struct {
	TransferID string `json:"transfer_id"`
	Command    string `json:"command"` // "use_lan" | "use_relay"
}

// Transfer command values.
const (
	CommandUseLAN   = "use_lan"
	CommandUseRelay = "use_relay"
)

// FileNeedRelay is the "file_need_relay" event payload: the receiver
// could not reach the sender's LAN server and is asking for a cloud
// relay upload.
type FileNeedRelay struct {
	TransferID string `json:"transfer_id"`
	Reason     string `json:"reason,omitempty"`
}

// FileSync is the "file_sync" event payload: announces a cloud-relayed
// envelope is available at a URL.
type FileSync struct {
	TransferID string `json:"transfer_id"`
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	Origin     string `json:"origin_device_id"`
}

// FileSyncCompleted is the "file_sync_completed" event payload,
// acknowledging successful receipt so the sender can release resources.
type FileSyncCompleted struct {
	TransferID string `json:"transfer_id"`
}

// RoomStatePeer describes one peer in a "room_state_changed" roster.
type RoomStatePeer struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// RoomStateChanged is the "room_state_changed" event payload.
type RoomStateChanged struct {
	Peers []RoomStatePeer `json:"peers"`
}

// ClientListUpdate is the bare-array "client_list_update" event payload.
type ClientListUpdate struct {
	DeviceIDs []string `json:"device_ids"`
}

// UnmarshalJSON decodes the bare JSON array of device IDs the event carries.
func (c *ClientListUpdate) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.DeviceIDs)
}

// UploadAuthRequest is POSTed to the cloud relay to obtain a one-time
// upload URL for a transfer that could not use LAN.
type UploadAuthRequest struct {
	RoomID     string `json:"room_id"`
	TransferID string `json:"transfer_id"`
	Filename   string `json:"filename"`
}

// UploadAuthResponse is the cloud relay's reply to UploadAuthRequest.
type UploadAuthResponse struct {
	UploadURL   string `json:"upload_url"`
	DownloadURL string `json:"download_url"`
}

// Event names exchanged over the Socket.IO channel.
const (
	EventJoin              = "join"
	EventClipboardSync     = "clipboard_sync"
	EventFileAvailable     = "file_available"
	EventTransferCommand   = "transfer_command"
	EventFileNeedRelay     = "file_need_relay"
	EventFileSync          = "file_sync"
	EventFileSyncCompleted = "file_sync_completed"
	EventRoomStateChanged  = "room_state_changed"
	EventClientListUpdate  = "client_list_update"
	EventRoomStats         = "room_stats"
	EventPeerEvicted       = "peer_evicted"
)
