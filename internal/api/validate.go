package api

import (
	"fmt"
	"net/url"
	"strings"

	"supplyroute/internal/model"
	"supplyroute/internal/network"
)

func validatePriority(p int) error {
	if p != 0 && p != 1 {
		return fmt.Errorf("priority must be 0 (road) or 1 (air), got %d", p)
	}
	return nil
}

func validatePlanRequest(req *model.PlanRequest) error {
	if req.Destination == nil {
		return fmt.Errorf("destination is required")
	}
	if err := network.ValidateDestination(*req.Destination); err != nil {
		return err
	}
	return validatePriority(req.Priority)
}

func validateRequestIn(in *model.RequestIn) error {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = model.TypeResource
	}
	if in.Type != model.TypeResource && in.Type != model.TypeService {
		return fmt.Errorf("invalid type: %s", in.Type)
	}
	if err := network.ValidateDestination(in.Destination); err != nil {
		return err
	}
	if err := validatePriority(in.Priority); err != nil {
		return err
	}
	if in.Type == model.TypeResource && strings.TrimSpace(in.Item) == "" {
		return fmt.Errorf("item is required for resource requests")
	}
	if in.Quantity < 0 {
		return fmt.Errorf("quantity must be >= 0")
	}
	return nil
}

func validateSubscription(req *model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	return nil
}
