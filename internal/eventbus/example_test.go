package eventbus_test

import (
	"fmt"

	"groucho/internal/eventbus"
)

func ExampleBus_Emit() {
	bus := eventbus.New()

	bus.SubscribeFunc("puzzle.complete", func(p any) {
		fmt.Println("exact:", p)
	})
	bus.SubscribeNamed(eventbus.Wildcard("puzzle"), func(p any, event string) {
		fmt.Println("wildcard:", event, p)
	})

	bus.Emit("puzzle.complete", 500)
	// Output:
	// exact: 500
	// wildcard: puzzle.complete 500
}
