package enums

// OrderStatus is the order lifecycle. Checkout only ever writes paid; the others exist for
// rows created by future payment flows.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusCancelled}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return known(s, orderStatuses) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(value, "order status", orderStatuses)
}
