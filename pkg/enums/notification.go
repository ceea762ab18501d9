package enums

// NotificationType labels in-app notification payloads.
type NotificationType string

const (
	NotificationOrderConfirmation NotificationType = "order_confirmation"
	NotificationPaymentReceipt    NotificationType = "payment_receipt"
	NotificationReturnStatus      NotificationType = "return_status"
	NotificationLowStock          NotificationType = "low_stock"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}
