package storage

import "encoding/binary"

// Key kinds. Every key starts with one of these bytes.
const (
	kindInstance     byte = 0x00
	kindSession      byte = 0x01
	kindParticipants byte = 0x02
)

// InstanceKey addresses a service-wide value such as the game hub address.
func InstanceKey(name string) []byte {
	return append([]byte{kindInstance}, name...)
}

// SessionKey addresses the DrawSession record of session id.
func SessionKey(id uint32) []byte { return sessionScoped(kindSession, id) }

// ParticipantsKey addresses the participant list of session id.
func ParticipantsKey(id uint32) []byte { return sessionScoped(kindParticipants, id) }

func sessionScoped(kind byte, id uint32) []byte {
	k := make([]byte, 5)
	k[0] = kind
	binary.BigEndian.PutUint32(k[1:], id)
	return k
}
