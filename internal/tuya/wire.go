package tuya

import (
	"encoding/json"
	"fmt"
)

// apiResponse is the outer envelope every cloud response arrives in.
type apiResponse struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	T       int64           `json:"t"`
}

// tokenResult is the payload of a token grant or refresh.
type tokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireTime   int64  `json:"expire_time"`
	UID          string `json:"uid"`
}

// StatusEntry is one code/value pair as the cloud reports it.
type StatusEntry struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
	DPID  int    `json:"dpId,omitempty"`
}

// DeviceModel mirrors the cloud's device object. Both API flavours
// return this shape; the sharing flavour leaves several fields empty.
type DeviceModel struct {
	ID          string        `json:"id"`
	UUID        string        `json:"uuid"`
	UID         string        `json:"uid"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	ProductID   string        `json:"product_id"`
	ProductName string        `json:"product_name"`
	LocalKey    string        `json:"local_key"`
	AssetID     string        `json:"asset_id"`
	Icon        string        `json:"icon"`
	IP          string        `json:"ip"`
	TimeZone    string        `json:"time_zone"`
	Model       string        `json:"model"`
	Sub         bool          `json:"sub"`
	Online      bool          `json:"online"`
	ActiveTime  int64         `json:"active_time"`
	CreateTime  int64         `json:"create_time"`
	UpdateTime  int64         `json:"update_time"`
	Status      []StatusEntry `json:"status"`
}

// deviceListResult is the paged device-list payload.
type deviceListResult struct {
	List    []DeviceModel `json:"list"`
	HasMore bool          `json:"has_more"`
	Total   int           `json:"total"`
}

// SpecEntry is one function or status-range descriptor from the
// specification endpoint. Values is a JSON object kept as a string,
// exactly as the cloud sends it.
type SpecEntry struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type"`
	Values string `json:"values"`
	DPID   int    `json:"dp_id,omitempty"`
}

// SpecificationResult is the per-device specification payload.
type SpecificationResult struct {
	Category  string      `json:"category"`
	Functions []SpecEntry `json:"functions"`
	Status    []SpecEntry `json:"status"`
}

// DPStatusRelation is one row of the sharing API's data-point strategy
// table ("dpStatusRelationDTOS"). It is the only place the cloud says
// which account flavour must carry a write for the point.
type DPStatusRelation struct {
	DPID           int               `json:"dpId"`
	StatusCode     string            `json:"statusCode"`
	StatusFormat   string            `json:"statusFormat"`
	ValueConvert   string            `json:"valueConvert"`
	ValueDesc      string            `json:"valueDesc"`
	ValueType      string            `json:"valueType"`
	EnumMappingMap map[string]string `json:"enumMappingMap"`
	PID            string            `json:"pid"`
	SupportLocal   bool              `json:"supportLocal"`
	PropertyUpdate bool              `json:"propertyUpdate"`
	AccessMode     string            `json:"accessMode"`
}

// strategyResult is the payload of the sharing API's device shadow
// query carrying the strategy table.
type strategyResult struct {
	DPStatusRelations []DPStatusRelation `json:"dpStatusRelationDTOS"`
}

// Command is one code/value write sent to the cloud.
type Command struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// commandsBody is the POST body for the command endpoint.
type commandsBody struct {
	Commands []Command `json:"commands"`
}

// propertiesBody is the POST body for a shadow-property update. The
// cloud wants the property map serialised as a JSON string, not an
// object.
type propertiesBody struct {
	Properties string `json:"properties"`
}

// PushProtocol values seen on the MQTT push channel.
const (
	// ProtocolReport carries a device status report.
	ProtocolReport = 4

	// ProtocolOther carries everything else: bind, unbind, rename,
	// online/offline transitions.
	ProtocolOther = 20
)

// PushMessage is a decoded push-channel payload.
type PushMessage struct {
	Protocol int           `json:"protocol"`
	DeviceID string        `json:"-"`
	BizCode  string        `json:"-"`
	BizName  string        `json:"-"`
	Status   []StatusEntry `json:"-"`
}

// pushEnvelope is the raw wire shape. The device id lives at
// data.devId for status reports and data.bizData.devId for the
// protocol-20 family.
type pushEnvelope struct {
	Protocol int   `json:"protocol"`
	T        int64 `json:"t"`
	Data     struct {
		DevID   string        `json:"devId"`
		Status  []StatusEntry `json:"status"`
		BizCode string        `json:"bizCode"`
		BizData struct {
			DevID string `json:"devId"`
			Name  string `json:"name"`
		} `json:"bizData"`
	} `json:"data"`
}

// DecodePush decodes one raw push payload. Payloads whose device id
// cannot be located are rejected with ErrBadEnvelope.
func DecodePush(raw []byte) (*PushMessage, error) {
	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}

	msg := &PushMessage{
		Protocol: env.Protocol,
		DeviceID: env.Data.DevID,
		BizCode:  env.Data.BizCode,
		BizName:  env.Data.BizData.Name,
		Status:   env.Data.Status,
	}
	if msg.DeviceID == "" {
		msg.DeviceID = env.Data.BizData.DevID
	}
	if msg.DeviceID == "" {
		return nil, fmt.Errorf("%w: no device id", ErrBadEnvelope)
	}
	return msg, nil
}
