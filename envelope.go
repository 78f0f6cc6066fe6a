package swrcache

import "time"

// envelope is the wire structure the Envelope Codec wraps a computed value
// in before handing it to the Backend. SoftExpireUtc is stored as Unix
// milliseconds so the wire format stays a plain JSON-able struct regardless
// of which Serializer is configured.
type envelope struct {
	Value         []byte `json:"value"`
	SoftExpireUtc int64  `json:"soft_expire_utc"`
}

// EncodeEnvelope serializes value with ser, wraps it with softExpireUtc, and
// serializes the wrapper — the engine's write path when SWR is enabled
// (i.e. a Policy was supplied; a policy-less call writes plain instead).
func EncodeEnvelope(ser Serializer, value interface{}, softExpireUtc time.Time) ([]byte, error) {
	data, err := ser.Marshal(value)
	if err != nil {
		return nil, err
	}
	env := envelope{Value: data, SoftExpireUtc: softExpireUtc.UnixMilli()}
	return ser.Marshal(env)
}

// TryDecodeEnvelope attempts to interpret raw as an envelope-wrapped
// payload. It never returns an error: a decode failure, or a successfully
// decoded struct missing the envelope's tag fields, is reported as a miss
// (ok=false) so the engine can fall back to DecodePlain. The zero-valued
// SoftExpireUtc sanity check is the chosen resolution to the open question
// of disambiguating envelope-wrapped from plain payloads (see DESIGN.md).
func TryDecodeEnvelope(ser Serializer, raw []byte) (env envelope, ok bool) {
	if err := ser.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	if len(env.Value) == 0 || env.SoftExpireUtc == 0 {
		return envelope{}, false
	}
	return env, true
}

// DecodeEnvelopeValue unmarshals the inner value carried by env into out.
func DecodeEnvelopeValue(ser Serializer, env envelope, out interface{}) error {
	return ser.Unmarshal(env.Value, out)
}

// DecodePlain unmarshals raw directly as out, for payloads written before
// envelope wrapping was adopted on a key (or written by a policy-less call).
func DecodePlain(ser Serializer, raw []byte, out interface{}) error {
	return ser.Unmarshal(raw, out)
}

// softExpireTime returns the time.Time form of the envelope's soft-expiry
// timestamp.
func (e envelope) softExpireTime() time.Time {
	return time.UnixMilli(e.SoftExpireUtc)
}
