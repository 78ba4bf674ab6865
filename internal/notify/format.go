package notify

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/lunchorder-system/internal/model"
)

func rubles(kopecks int64) string {
	return fmt.Sprintf("%.2f ₽", float64(kopecks)/100)
}

// formatGroupOrder строит текст сводки группового заказа для ресторана.
func formatGroupOrder(n model.GroupOrderNotice) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Новый групповой заказ №%s\n", n.GroupOrderID)
	fmt.Fprintf(&b, "Доставка: %s, %s\n", n.BuildingName, n.DeliverySlot)
	fmt.Fprintf(&b, "Участников: %d\n\n", n.ParticipantCount)

	for i, o := range n.Orders {
		fmt.Fprintf(&b, "%d) Заказ %s — %s\n", i+1, o.ID, rubles(o.TotalPrice))
		for _, item := range o.Items {
			fmt.Fprintf(&b, "   • %s × %d — %s\n", item.Name, item.Quantity, rubles(item.Price*int64(item.Quantity)))
		}
	}

	fmt.Fprintf(&b, "\nИтого: %s", rubles(n.TotalAmount))
	return b.String()
}

// formatLobbyCancelled строит текст уведомления об отмене брони лобби.
func formatLobbyCancelled(slotTime string) string {
	return fmt.Sprintf("Лобби на слот %s не набрало минимальное число участников, ваша бронь отменена. Вы можете оформить заказ с платной доставкой или выбрать другой слот.", slotTime)
}
