package shipments

import (
	"fmt"
	"sort"
	"time"

	"github.com/matheusmosca/order-fulfillment/internal/idgen"
	"github.com/matheusmosca/order-fulfillment/internal/ledger"
)

var (
	sortingCenters = []string{
		"Main Distribution Center",
		"Regional Sorting Facility",
		"Local Dispatch Center",
	}
	transitDescriptions = []string{
		"En route to next facility",
		"In transit",
		"Arrived at regional hub",
		"Departed from regional hub",
		"Arrived at local facility",
	}
)

// simulatedThreshold: com até este número de atualizações reais o feed de
// rastreio é completado com eventos simulados
const simulatedThreshold = 2

// needsSimulation informa se o rastreio deve ser completado com eventos simulados
func needsSimulation(status string, realUpdates int) bool {
	return realUpdates <= simulatedThreshold && status != StatusPending && status != StatusCancelled
}

func between(rnd idgen.Random, lo, hi int) int {
	return lo + rnd.IntN(hi-lo+1)
}

// simulateTracking monta eventos fictícios ancorados em shipping_date e
// actual_delivery, em ordem cronológica. Nada disso é persistido.
func simulateTracking(s *Shipment, rnd idgen.Random) []ledger.Entry {
	if s.ShippingDate == nil {
		return []ledger.Entry{}
	}

	updates := make([]ledger.Entry, 0)
	current := *s.ShippingDate

	if s.Status != StatusPending && s.Status != StatusProcessing {
		center := sortingCenters[rnd.IntN(len(sortingCenters))]
		at := current.Add(time.Duration(between(rnd, 2, 8)) * time.Hour)
		updates = append(updates, simulated(StatusProcessing, "Shipment received at "+center, center, at))
	}

	switch s.Status {
	case StatusInTransit, StatusOutForDelivery, StatusDelivered:
		hops := between(rnd, 1, 3)
		for i := 0; i < hops; i++ {
			current = current.Add(time.Duration(between(rnd, 8, 24)) * time.Hour)
			description := transitDescriptions[rnd.IntN(len(transitDescriptions))]
			updates = append(updates, simulated(StatusInTransit, description, fmt.Sprintf("Transit Location %d", i+1), current))
		}
	}

	switch s.Status {
	case StatusOutForDelivery, StatusDelivered:
		current = current.Add(time.Duration(between(rnd, 8, 24)) * time.Hour)
		updates = append(updates, simulated(StatusOutForDelivery, "Shipment out for delivery", "Local Delivery Facility", current))
	}

	if s.Status == StatusDelivered && s.ActualDelivery != nil {
		updates = append(updates, simulated(StatusDelivered, "Shipment delivered successfully", "Delivery Address", *s.ActualDelivery))
	}

	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].Timestamp.Before(updates[j].Timestamp)
	})
	return updates
}

func simulated(status, note, location string, at time.Time) ledger.Entry {
	return ledger.Entry{Status: status, Timestamp: at, Note: note, Location: location}
}
