package repository

import (
	"context"
	"encoding/json"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
)

// RPCRequester definition correlation rpc request function
type RPCRequester interface {
	Request(ctx context.Context, payload []byte) ([]byte, error)
}

// RPCMemberDirectory 透過 rabbitmq rpc 向 member service 查詢資料
type RPCMemberDirectory struct {
	rpc RPCRequester
}

// NewRPCMemberDirectory create RPCMemberDirectory
func NewRPCMemberDirectory(rpc RPCRequester) *RPCMemberDirectory {
	return &RPCMemberDirectory{rpc: rpc}
}

// FindProfile find member profile by id,
// rpc timeout 時回傳 (nil, nil) 讓呼叫端降級
func (d *RPCMemberDirectory) FindProfile(ctx context.Context, memberID string) (*domain.MemberProfile, error) {
	req := domain.MemberLookupReq{Action: "member.profile", MemberID: memberID}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errprocess.Set("marshal member lookup failed: " + err.Error())
	}

	reply, err := d.rpc.Request(ctx, body)
	if err != nil {
		return nil, errprocess.New(errprocess.KindTransient, "member lookup rpc failed: "+err.Error())
	}
	if reply == nil {
		// timeout，呼叫端以 nil profile 繼續
		return nil, nil
	}

	var profile domain.MemberProfile
	if err := json.Unmarshal(reply, &profile); err != nil {
		return nil, errprocess.Set("unmarshal member profile failed: " + err.Error())
	}
	return &profile, nil
}
