package handler

import (
	"time"

	"github.com/zayra/storefront/internal/domain/order"
)

type trackingResponse struct {
	TrackingNumber    string                 `json:"trackingNumber"`
	Carrier           string                 `json:"carrier"`
	EstimatedDelivery time.Time              `json:"estimatedDelivery"`
	ActualDelivery    *time.Time             `json:"actualDelivery,omitempty"`
	CurrentLocation   string                 `json:"currentLocation,omitempty"`
	Updates           []order.TrackingUpdate `json:"updates"`
}

type orderResponse struct {
	ID              string               `json:"id"`
	Items           []order.Item         `json:"items"`
	Totals          order.Totals         `json:"totals"`
	AppliedCoupon   *order.AppliedCoupon `json:"appliedCoupon,omitempty"`
	PaymentMethod   order.PaymentMethod  `json:"paymentMethod"`
	PaymentStatus   order.PaymentStatus  `json:"paymentStatus"`
	Status          order.Status         `json:"status"`
	ShippingAddress order.Address        `json:"shippingAddress"`
	Tracking        *trackingResponse    `json:"tracking,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		Items:           o.Items,
		Totals:          o.Totals,
		AppliedCoupon:   o.AppliedCoupon,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
	}
	if t := o.Tracking; t != nil {
		updates := t.Updates
		if updates == nil {
			updates = []order.TrackingUpdate{}
		}
		resp.Tracking = &trackingResponse{
			TrackingNumber:    t.TrackingNumber,
			Carrier:           t.Carrier,
			EstimatedDelivery: t.EstimatedDelivery,
			ActualDelivery:    t.ActualDelivery,
			CurrentLocation:   t.CurrentLocation,
			Updates:           updates,
		}
	}
	return resp
}
