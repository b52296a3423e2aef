// internal/inject/templates.go
//
// Fragment templates.  Parsed once at injector construction; execution
// renders into an in-memory buffer that the injector splices over the
// placeholder markers.  html/template handles contextual escaping, so
// broker names and descriptions from the database cannot break markup.
package inject

import "html/template"

const gridTemplate = `
<div class="broker-grid" data-country="{{.Country}}">
{{range .Cards}}  <div class="broker-card{{if .Featured}} broker-card--featured{{end}}">
    <div class="broker-card__logo" style="background-color:{{.LogoColor}}">
      {{if .Logo}}<img src="{{.Logo}}" alt="{{.Name}} logo" loading="lazy">{{else}}<span>{{.Initial}}</span>{{end}}
    </div>
    <div class="broker-card__body">
      <h3 class="broker-card__name"><span class="broker-card__rank">#{{.Rank}}</span> {{.Name}}</h3>
      <div class="broker-card__rating" aria-label="Rated {{.Rating}} out of 5">
        <span class="stars">{{.Stars}}</span><span class="score">{{printf "%.1f" .Rating}}</span>
      </div>
      <p class="broker-card__blurb">{{.Blurb}}</p>
      <dl class="broker-card__facts">
        <dt>Min. deposit</dt><dd>{{if eq .MinDeposit 0}}$0{{else}}${{.MinDeposit}}{{end}}</dd>
      </dl>
      <a class="broker-card__cta" href="{{.WebsiteURL}}" rel="nofollow sponsored" target="_blank">Visit broker</a>
    </div>
  </div>
{{end}}</div>
`

const tableTemplate = `
<table class="broker-table{{if .Popular}} broker-table--popular{{end}}" data-country="{{.Country}}">
  <thead>
    <tr>
      <th>#</th><th>Broker</th><th>Rating</th><th>Min. deposit</th>{{if .Popular}}<th>Investors</th><th>Founded</th>{{end}}<th></th>
    </tr>
  </thead>
  <tbody>
{{range .Rows}}    <tr>
      <td>{{.Rank}}</td>
      <td class="broker-table__name">{{.Name}}</td>
      <td><span class="stars">{{.Stars}}</span> {{printf "%.1f" .Rating}}</td>
      <td>{{if eq .MinDeposit 0}}$0{{else}}${{.MinDeposit}}{{end}}</td>
{{if $.Popular}}      <td>{{.InvestorBase}}</td>
      <td>{{if .FoundedYear}}{{.FoundedYear}}{{end}}</td>
{{end}}      <td><a href="{{.WebsiteURL}}" rel="nofollow sponsored" target="_blank">Visit</a></td>
    </tr>
{{end}}  </tbody>
</table>
`

func parseTemplates() (*template.Template, error) {
	t := template.New("fragments")
	if _, err := t.New("grid").Parse(gridTemplate); err != nil {
		return nil, err
	}
	if _, err := t.New("table").Parse(tableTemplate); err != nil {
		return nil, err
	}
	return t, nil
}
