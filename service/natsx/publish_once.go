package natsx

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/nats-io/nats.go"
)

// 生成随机 msgID（16字节）
func genMsgID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// withMsgID sets Nats-Msg-Id so JetStream drops a republished duplicate.
// An empty msgID gets a random one.
func withMsgID(hdr map[string]string, msgID string) map[string]string {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID == "" {
		msgID = genMsgID()
	}
	hdr[nats.MsgIdHdr] = msgID
	return hdr
}
