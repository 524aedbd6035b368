package dht

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/dpc/rostra/pkg/rostra"
)

// IdPublishedData is the result of resolving a RostraId on the DHT: its
// currently advertised transport ticket and/or DAG head, either of which may
// be absent if the publisher never included it.
type IdPublishedData struct {
	Ticket string
	Head   *rostra.ShortEventId
}

// ResolveId fetches and validates the signed packet published under id,
// returning the p2p ticket and head it advertises.
func ResolveId(ctx context.Context, id rostra.RostraId, transport Transport) (IdPublishedData, error) {
	raw, err := transport.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return IdPublishedData{}, ErrNotFound
		}
		return IdPublishedData{}, &ResolveError{Source: err}
	}

	sp, err := ParseSignedPacket(raw)
	if err != nil {
		return IdPublishedData{}, err
	}
	if sp.PublicKey != id {
		return IdPublishedData{}, ErrWrongType
	}

	ticketStr, headStr, err := sp.records()
	if err != nil {
		return IdPublishedData{}, err
	}

	var data IdPublishedData
	if ticketStr != "" {
		if _, err := base64.RawURLEncoding.DecodeString(ticketStr); err != nil {
			return IdPublishedData{}, ErrMalformedTicket
		}
		data.Ticket = ticketStr
	}
	if headStr != "" {
		head, err := rostra.ParseShortEventId(headStr)
		if err != nil {
			return IdPublishedData{}, ErrMalformedTicket
		}
		data.Head = &head
	}

	return data, nil
}
