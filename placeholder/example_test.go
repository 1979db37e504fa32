package placeholder_test

import (
	"fmt"

	"github.com/lvillar/pdfmerge/placeholder"
)

func ExampleRender() {
	values := map[string]string{"name": "Ada", "amount": "42"}
	out := placeholder.Render("Hello {{name}}, total: {{amount}}", placeholder.BinderFunc(func(f string) string {
		return values[f]
	}))
	fmt.Println(out)
	// Output: Hello Ada, total: 42
}

func ExampleExtract() {
	fmt.Println(placeholder.Extract("<p>{{customer}} owes {{amount}} ({{customer}})</p>"))
	// Output: [customer amount]
}
